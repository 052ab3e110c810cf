package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist or is inactive
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller's identity does not match the required actor
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when a concurrent mutation or stale precondition is detected
	ErrConflict = errors.New("conflict")

	// ErrTransaction is returned when a storage failure forced a rollback mid-transition
	ErrTransaction = errors.New("transaction failed")

	// ErrLocked is returned when a document lock is held by another user.
	// It wraps ErrConflict so callers checking for conflicts still match.
	ErrLocked = fmt.Errorf("%w: document locked", ErrConflict)

	// ErrValidation is returned when input fails structural validation
	ErrValidation = errors.New("validation failed")
)
