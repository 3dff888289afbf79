package domain

import "errors"

var (
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrNoReplica              = errors.New("no replica configured")
)
