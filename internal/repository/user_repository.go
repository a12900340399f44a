package repository

import (
	"database/sql"
	"fmt"

	"github.com/huntparty/huntparty-backend/internal/models"
	"github.com/huntparty/huntparty-backend/pkg/database"
	"github.com/lib/pq"
)

// UserRepository 외부 유저 디렉토리의 Postgres 어댑터.
// 엔진은 이름→id 해석과 upsert 능력만 사용한다.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert 디렉토리 항목 생성/갱신 (이름은 대소문자 무시 유일)
func (r *UserRepository) Upsert(id, name string) error {
	query := `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
	`
	_, err := r.db.Exec(query, id, name)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// ResolveNameToID 표시 이름을 안정 id로 해석 (대소문자 무시)
func (r *UserRepository) ResolveNameToID(name string) (string, error) {
	query := `
		SELECT id FROM users
		WHERE LOWER(name) = LOWER($1)
	`
	var id string
	err := r.db.QueryRow(query, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil // 해당 없음
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve name: %w", err)
	}
	return id, nil
}

// FindByID id로 디렉토리 항목 조회
func (r *UserRepository) FindByID(id string) (*models.User, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user := &models.User{}
	err := r.db.QueryRow(query, id).Scan(
		&user.ID,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	blacklist, err := r.blacklistOf(id)
	if err != nil {
		return nil, err
	}
	user.Blacklist = blacklist
	return user, nil
}

// SetBlacklist 차단 목록 전체 교체
func (r *UserRepository) SetBlacklist(userID string, entries []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_blacklist WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear blacklist: %w", err)
	}
	if len(entries) > 0 {
		if _, err := tx.Exec(`
			INSERT INTO user_blacklist (user_id, entry)
			SELECT $1, UNNEST($2::text[])
		`, userID, pq.Array(entries)); err != nil {
			return fmt.Errorf("failed to insert blacklist: %w", err)
		}
	}
	return tx.Commit()
}

func (r *UserRepository) blacklistOf(userID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT entry FROM user_blacklist WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
