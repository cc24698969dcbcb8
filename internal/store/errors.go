package store

import "errors"

var (
	// ErrConflict is an overlapping booking or a status that moved since it
	// was read.
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
