package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrAlreadyResolved: the transaction reached a terminal status earlier.
	// Callers racing on the same id must treat this as a no-op, never as a
	// license to overwrite.
	ErrAlreadyResolved = errors.New("transaction already resolved")
)
