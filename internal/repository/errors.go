package repository

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write loses: a second ongoing match, a stale
	// version or a concurrent transaction.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is returned when an append-only row already exists for the key.
	ErrDuplicate = errors.New("duplicate key")
)
