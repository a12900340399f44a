package store

import "errors"

// Party store errors
var (
	ErrPartyNotFound      = errors.New("party not found")
	ErrPartyFull          = errors.New("party is full")
	ErrUserAlreadyInParty = errors.New("user already in another party")
	ErrNotLeader          = errors.New("user is not the party leader")
	ErrNotMember          = errors.New("user is not a party member")

	// ErrLockBusy 파티 락 획득 실패 - 호출자는 재시도해야 함 (종료 오류 아님)
	ErrLockBusy = errors.New("party is busy, retry")
)

// Queue index errors
var (
	ErrEntrantNotFound = errors.New("entrant not found")
)
