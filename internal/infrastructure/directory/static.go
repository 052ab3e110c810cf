// Package directory provides a configuration-backed stand-in for the
// identity collaborator. Role resolution belongs to the external identity
// system; this implementation answers from a static table so assignee rules
// of type "role" work without it.
package directory

import (
	"context"
	"fmt"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

// StaticDirectory resolves roles from a fixed mapping of
// "organizationID/role" to user id.
type StaticDirectory struct {
	assignments map[string]string
}

// NewStaticDirectory creates a directory from role assignments keyed by
// "orgID/role"
func NewStaticDirectory(assignments map[string]string) *StaticDirectory {
	if assignments == nil {
		assignments = make(map[string]string)
	}
	return &StaticDirectory{assignments: assignments}
}

// ResolveRole returns the user holding a role in an organization
func (d *StaticDirectory) ResolveRole(_ context.Context, organizationID, role string) (string, error) {
	userID, ok := d.assignments[organizationID+"/"+role]
	if !ok {
		return "", fmt.Errorf("%w: no user holds role %q in organization %s", errs.ErrNotFound, role, organizationID)
	}
	return userID, nil
}

// Verify interface compliance
var _ port.Directory = (*StaticDirectory)(nil)
