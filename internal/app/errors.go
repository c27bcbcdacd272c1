package service

import "errors"

// Sentinel error kinds returned by the service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotMember    = errors.New("user is not a member of the task's team")
)
