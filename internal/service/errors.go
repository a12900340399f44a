package service

import "errors"

// Validation errors (상태를 건드리기 전에 거른다)
var (
	ErrMissingUser     = errors.New("missing user id")
	ErrMissingLocation = errors.New("missing ground id")
	ErrMissingJob      = errors.New("missing job class")
)

// Random assignment errors
var (
	ErrNoOpenParty = errors.New("no open party available")
)
