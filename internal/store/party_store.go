package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huntparty/huntparty-backend/internal/models"
)

// PartyStore 파티 엔티티 소유자. 생성/가입/탈퇴/TTL/정원을 관리한다.
//
// 잠금 규칙: 파티 단위 변경은 해당 파티의 advisory lock(TryLock)으로 직렬화하고,
// 맵과 파티 필드 접근 자체는 짧게 mu로 보호한다. advisory lock을 잡지 못한
// 호출자는 ErrLockBusy를 받고 재시도한다 - 매칭 틱을 막지 않기 위해 절대
// 블로킹하지 않는다.
type PartyStore struct {
	mu       sync.Mutex
	parties  map[string]*models.Party
	byMember map[string]string // userID -> partyID
	locks    map[string]*sync.Mutex
	maxSize  int
	ttl      time.Duration
}

// NewPartyStore PartyStore 생성
func NewPartyStore(maxSize int, ttl time.Duration) *PartyStore {
	if maxSize <= 0 {
		maxSize = 6
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &PartyStore{
		parties:  make(map[string]*models.Party),
		byMember: make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
		maxSize:  maxSize,
		ttl:      ttl,
	}
}

// MaxSize 파티 정원
func (s *PartyStore) MaxSize() int {
	return s.maxSize
}

// Create 리더 1인 파티 생성
func (s *PartyStore) Create(leaderID, job string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, in := s.byMember[leaderID]; in {
		return nil, ErrUserAlreadyInParty
	}
	p := s.newPartyLocked(leaderID, job)
	return p.Clone(), nil
}

// CreateForPair 매칭된 두 참가자로 파티 생성 (스케줄러 전용)
func (s *PartyStore) CreateForPair(a, b *models.Entrant) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, in := s.byMember[a.ID]; in {
		return nil, ErrUserAlreadyInParty
	}
	if _, in := s.byMember[b.ID]; in {
		return nil, ErrUserAlreadyInParty
	}

	p := s.newPartyLocked(a.ID, a.Job)
	now := time.Now()
	p.Members = append(p.Members, models.PartyMember{
		UserID:       b.ID,
		Job:          b.Job,
		JoinedAt:     now,
		LastActiveAt: now,
	})
	s.byMember[b.ID] = p.ID
	return p.Clone(), nil
}

func (s *PartyStore) newPartyLocked(leaderID, job string) *models.Party {
	now := time.Now()
	p := &models.Party{
		ID:       uuid.New().String(),
		LeaderID: leaderID,
		Members: []models.PartyMember{{
			UserID:       leaderID,
			Job:          job,
			JoinedAt:     now,
			LastActiveAt: now,
		}},
		IsOpen:    true,
		Status:    models.PartyStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.parties[p.ID] = p
	s.byMember[leaderID] = p.ID
	s.locks[p.ID] = &sync.Mutex{}
	return p
}

// tryLock 파티 advisory lock 획득 시도. 획득 시 해제 함수를 반환한다.
func (s *PartyStore) tryLock(partyID string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[partyID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrPartyNotFound
	}
	if !lock.TryLock() {
		return nil, ErrLockBusy
	}
	return lock.Unlock, nil
}

// Join 파티 가입. 동시 가입이 정원을 넘기지 못하도록 advisory lock 아래서
// 정원을 재확인한다. 정원 도달 시 matched로 전환하고 모집을 닫는다.
func (s *PartyStore) Join(partyID, userID, job string) (*models.Party, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	if cur, in := s.byMember[userID]; in {
		if cur == partyID {
			return p.Clone(), nil
		}
		return nil, ErrUserAlreadyInParty
	}
	if len(p.Members) >= s.maxSize {
		return nil, ErrPartyFull
	}

	now := time.Now()
	p.Members = append(p.Members, models.PartyMember{
		UserID:       userID,
		Job:          job,
		JoinedAt:     now,
		LastActiveAt: now,
	})
	s.byMember[userID] = partyID
	p.UpdatedAt = now

	if len(p.Members) >= s.maxSize {
		p.Status = models.PartyStatusMatched
		p.IsOpen = false
	}
	return p.Clone(), nil
}

// Leave 파티 탈퇴. 리더가 나가면 가장 최근에 활동한 구성원에게 리더를
// 넘기고(동률이면 먼저 가입한 쪽), 마지막 구성원이 나가면 파티를 삭제한다.
// 반환된 bool은 파티 삭제 여부.
func (s *PartyStore) Leave(partyID, userID string) (*models.Party, bool, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, false, ErrPartyNotFound
	}

	idx := -1
	for i, m := range p.Members {
		if m.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, ErrNotMember
	}

	p.UpdatedAt = time.Now()

	if len(p.Members) == 1 {
		// 해산 통지가 마지막 구성원에게 닿도록 명단을 남긴 채 삭제한다
		s.deletePartyLocked(p)
		return p.Clone(), true, nil
	}

	p.Members = append(p.Members[:idx], p.Members[idx+1:]...)
	delete(s.byMember, userID)

	if p.LeaderID == userID {
		p.LeaderID = nextLeader(p.Members)
	}
	return p.Clone(), false, nil
}

// nextLeader 가장 최근 활동한 구성원, 동률이면 먼저 가입한 구성원
func nextLeader(members []models.PartyMember) string {
	best := members[0]
	for _, m := range members[1:] {
		if m.LastActiveAt.After(best.LastActiveAt) {
			best = m
			continue
		}
		if m.LastActiveAt.Equal(best.LastActiveAt) && m.JoinedAt.Before(best.JoinedAt) {
			best = m
		}
	}
	return best.UserID
}

func (s *PartyStore) deletePartyLocked(p *models.Party) {
	p.Status = models.PartyStatusExpired
	for _, m := range p.Members {
		if s.byMember[m.UserID] == p.ID {
			delete(s.byMember, m.UserID)
		}
	}
	delete(s.parties, p.ID)
	delete(s.locks, p.ID)
}

// UpdateBuffs 버프 집계 부분 갱신. 주어진 필드만 병합하고 유효 범위로 clamp한다.
func (s *PartyStore) UpdateBuffs(partyID string, patch models.PartyBuffPatch) (*models.Party, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}

	if patch.HyperBody != nil {
		p.Buffs.HyperBody = clampBuff(*patch.HyperBody)
	}
	if patch.Haste != nil {
		p.Buffs.Haste = clampBuff(*patch.Haste)
	}
	if patch.Bless != nil {
		p.Buffs.Bless = clampBuff(*patch.Bless)
	}
	p.UpdatedAt = time.Now()
	return p.Clone(), nil
}

func clampBuff(v int) int {
	if v < 0 {
		return 0
	}
	if v > models.MaxBuffValue {
		return models.MaxBuffValue
	}
	return v
}

// AssignChannel 채널 배정. 상태는 matched로 고정되고 모집이 닫힌다.
func (s *PartyStore) AssignChannel(partyID string, channel int) (*models.Party, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	p.Channel = channel
	p.Status = models.PartyStatusMatched
	p.IsOpen = false
	p.UpdatedAt = time.Now()
	return p.Clone(), nil
}

// SetOpen 랜덤 배정 수용 여부 변경
func (s *PartyStore) SetOpen(partyID string, isOpen bool) (*models.Party, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	if isOpen && len(p.Members) >= s.maxSize {
		return nil, ErrPartyFull
	}
	p.IsOpen = isOpen
	p.UpdatedAt = time.Now()
	return p.Clone(), nil
}

// TransferOwnership 리더 위임
func (s *PartyStore) TransferOwnership(partyID, fromID, toID string) (*models.Party, error) {
	unlock, err := s.tryLock(partyID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	if p.LeaderID != fromID {
		return nil, ErrNotLeader
	}
	if !p.HasMember(toID) {
		return nil, ErrNotMember
	}
	p.LeaderID = toID
	p.UpdatedAt = time.Now()
	return p.Clone(), nil
}

// Heartbeat 구성원 활동 신호로 만료 시각을 연장한다. 읽기 요청은 연장하지
// 않고, 구성원이 아닌 호출자도 연장하지 못한다.
func (s *PartyStore) Heartbeat(partyID, userID string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	now := time.Now()
	found := false
	for i := range p.Members {
		if p.Members[i].UserID == userID {
			p.Members[i].LastActiveAt = now
			found = true
		}
	}
	if !found {
		return nil, ErrNotMember
	}
	p.ExpiresAt = now.Add(s.ttl)
	return p.Clone(), nil
}

// Get 파티 조회 (복사본)
func (s *PartyStore) Get(partyID string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	return p.Clone(), nil
}

// GetByMember 구성원 id로 역조회
func (s *PartyStore) GetByMember(userID string) (*models.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partyID, ok := s.byMember[userID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	p, ok := s.parties[partyID]
	if !ok {
		return nil, ErrPartyNotFound
	}
	return p.Clone(), nil
}

// InParty 현재 파티 소속 여부
func (s *PartyStore) InParty(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, in := s.byMember[userID]
	return in
}

// Count 활성 파티 수
func (s *PartyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parties)
}

// OpenParties 모집 중이고 정원이 남은 파티 목록 (복사본).
// withoutJob이 비어 있지 않으면 해당 직업이 없는 파티만 고른다.
func (s *PartyStore) OpenParties(withoutJob string) []*models.Party {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Party
	for _, p := range s.parties {
		if !p.IsOpen || p.Status != models.PartyStatusOpen {
			continue
		}
		if len(p.Members) >= s.maxSize {
			continue
		}
		if withoutJob != "" && p.HasJob(withoutJob) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

// SweepExpired 만료 시각이 지난 파티를 삭제하고 삭제된 파티 목록을 반환한다.
// advisory lock이 잡혀 있는 파티(가입 진행 중)는 이번 회차에서 건너뛴다.
func (s *PartyStore) SweepExpired() []*models.Party {
	s.mu.Lock()
	var candidates []string
	now := time.Now()
	for id, p := range s.parties {
		if p.ExpiresAt.Before(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()

	var expired []*models.Party
	for _, id := range candidates {
		unlock, err := s.tryLock(id)
		if err != nil {
			continue
		}

		s.mu.Lock()
		p, ok := s.parties[id]
		if ok && p.ExpiresAt.Before(time.Now()) {
			s.deletePartyLocked(p)
			expired = append(expired, p.Clone())
		}
		s.mu.Unlock()
		unlock()
	}
	return expired
}
