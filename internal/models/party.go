package models

import "time"

type PartyStatus string

const (
	PartyStatusOpen     PartyStatus = "open"
	PartyStatusMatching PartyStatus = "matching"
	PartyStatusMatched  PartyStatus = "matched"
	PartyStatusExpired  PartyStatus = "expired"
)

// MaxBuffValue 파티 버프 카운터 상한
const MaxBuffValue = 999

// PartyBuffs 파티 버프 집계 상태 (카운터 3종, 0~MaxBuffValue)
type PartyBuffs struct {
	HyperBody int `json:"hyperBody"`
	Haste     int `json:"haste"`
	Bless     int `json:"bless"`
}

// PartyBuffPatch 버프 부분 갱신 (nil 필드는 무시)
type PartyBuffPatch struct {
	HyperBody *int `json:"hyperBody,omitempty"`
	Haste     *int `json:"haste,omitempty"`
	Bless     *int `json:"bless,omitempty"`
}

// PartyMember 파티 구성원
type PartyMember struct {
	UserID       string    `json:"userId"`
	Job          string    `json:"job"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Party 사냥 파티
type Party struct {
	ID        string        `json:"id"`
	LeaderID  string        `json:"leaderId"`
	Members   []PartyMember `json:"members"`
	Buffs     PartyBuffs    `json:"buffs"`
	IsOpen    bool          `json:"isOpen"`
	Status    PartyStatus   `json:"status"`
	Channel   int           `json:"channel,omitempty"` // 0 = 미배정
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// HasJob 해당 직업의 구성원이 있는지 확인
func (p *Party) HasJob(job string) bool {
	for _, m := range p.Members {
		if m.Job == job {
			return true
		}
	}
	return false
}

// HasMember 해당 유저가 구성원인지 확인
func (p *Party) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Clone 깊은 복사본 반환
func (p *Party) Clone() *Party {
	c := *p
	c.Members = append([]PartyMember(nil), p.Members...)
	return &c
}

// SnapshotMember 브로드캐스트용 구성원 요약
type SnapshotMember struct {
	UserID string `json:"userId"`
	Job    string `json:"job"`
}

// PartySnapshot 커밋된 변경 후 게이트웨이로 전송되는 파티 상태
type PartySnapshot struct {
	PartyID   string           `json:"partyId"`
	LeaderID  string           `json:"leaderId"`
	Members   []SnapshotMember `json:"members"`
	Buffs     PartyBuffs       `json:"buffs"`
	Status    PartyStatus      `json:"status"`
	IsOpen    bool             `json:"isOpen"`
	Channel   int              `json:"channel,omitempty"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Deleted   bool             `json:"deleted,omitempty"`
}

// Snapshot 브로드캐스트용 스냅샷 생성
func (p *Party) Snapshot() PartySnapshot {
	members := make([]SnapshotMember, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, SnapshotMember{UserID: m.UserID, Job: m.Job})
	}
	return PartySnapshot{
		PartyID:   p.ID,
		LeaderID:  p.LeaderID,
		Members:   members,
		Buffs:     p.Buffs,
		Status:    p.Status,
		IsOpen:    p.IsOpen,
		Channel:   p.Channel,
		ExpiresAt: p.ExpiresAt,
	}
}
