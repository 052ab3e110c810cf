// Package service contains the application services: the workflow instance
// state machine controller, the document lock/version manager, and workflow
// definition management. Every multi-entity transition runs inside the
// transaction manager; domain events are dispatched only after commit.
package service

import (
	"errors"
	"fmt"

	"github.com/docuflow/docuflow/internal/domain/errs"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DocumentChange describes a partial document mutation. Nil fields keep the
// current value, mirroring the COALESCE update semantics of the HTTP layer.
type DocumentChange struct {
	Title       *string
	Description *string
	Content     *string
	Metadata    *string
	Status      *string
}

// wrapTxErr classifies an error surfaced by a transaction. Domain taxonomy
// errors pass through untouched; anything else is a storage failure that
// already rolled back, reported as a transaction error so callers know a
// whole-operation retry is safe.
func wrapTxErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrUnauthorized) ||
		errors.Is(err, errs.ErrConflict) ||
		errors.Is(err, errs.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", errs.ErrTransaction, err)
}
