package models

import "time"

// User 유저 디렉토리 항목 (이름은 대소문자 구분 없이 유일)
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Blacklist []string  `json:"blacklist,omitempty" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
