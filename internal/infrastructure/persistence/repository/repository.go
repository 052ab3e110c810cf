// Package repository provides sqlite-backed implementations of the
// persistence ports. All statements run through the executor resolved from
// the context, so calls inside a coordinated transaction join it.
package repository

import (
	"fmt"

	"github.com/docuflow/docuflow/internal/domain/errs"
)

func notFoundErr(kind, id string) error {
	return fmt.Errorf("%w: %s %s", errs.ErrNotFound, kind, id)
}

func conflictErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errs.ErrConflict, fmt.Sprintf(format, args...))
}
