package models

import "time"

type EntrantStatus string

const (
	EntrantStatusIdle      EntrantStatus = "idle"
	EntrantStatusSearching EntrantStatus = "searching"
	EntrantStatusMatched   EntrantStatus = "matched"
	EntrantStatusPaused    EntrantStatus = "paused"
)

// 직업 구분
const (
	JobWarrior = "warrior"
	JobMage    = "mage"
	JobArcher  = "archer"
	JobThief   = "thief"
	JobPirate  = "pirate"
)

// BuffRange 버프 요구 범위 (nil = 제한 없음)
type BuffRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Contains 값이 범위 안에 있는지 확인 (양 끝 포함)
func (r *BuffRange) Contains(v int) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// BuffSupply 파트너에게 제공 가능한 버프 레벨 (nil = 제공 불가)
type BuffSupply struct {
	HyperBody *int `json:"hyperBody,omitempty"`
	Haste     *int `json:"haste,omitempty"`
	Bless     *int `json:"bless,omitempty"`
}

// BuffDemand 파트너에게 요구하는 버프 범위 (nil = 요구 없음)
type BuffDemand struct {
	HyperBody *BuffRange `json:"hyperBody,omitempty"`
	Haste     *BuffRange `json:"haste,omitempty"`
	Bless     *BuffRange `json:"bless,omitempty"`
}

// Entrant 매칭 큐에 참여 중인 유저
type Entrant struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Level           int           `json:"level"`
	Job             string        `json:"job"`
	Power           int           `json:"power"`
	Supply          BuffSupply    `json:"supply"`
	Demand          BuffDemand    `json:"demand"`
	Blocked         []string      `json:"blocked,omitempty"` // 차단 대상 (id 또는 이름)
	Status          EntrantStatus `json:"status"`
	GroundID        string        `json:"groundId"`
	Channel         int           `json:"channel,omitempty"`
	SearchStartedAt *time.Time    `json:"searchStartedAt,omitempty"`
	MatchedAt       *time.Time    `json:"matchedAt,omitempty"`
	LastSeenAt      time.Time     `json:"lastSeenAt"`
}

// Clone 깊은 복사본 반환
func (e *Entrant) Clone() *Entrant {
	c := *e
	if e.Blocked != nil {
		c.Blocked = append([]string(nil), e.Blocked...)
	}
	return &c
}
