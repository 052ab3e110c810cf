package port

import (
	"context"

	"github.com/docuflow/docuflow/internal/domain/entity"
)

// AuditRecorder records an action against a resource after a successful
// transition. Recording is best-effort: implementations log failures and
// never propagate them into the triggering call.
type AuditRecorder interface {
	Record(ctx context.Context, entry *entity.AuditEntry)
}

// Directory resolves organization membership questions. Identity and role
// management live outside this service; this is the narrow lookup the
// assignee resolvers need.
type Directory interface {
	// ResolveRole returns the user currently holding a role in an organization
	ResolveRole(ctx context.Context, organizationID, role string) (string, error)
}

// AssigneeResolver turns a step's assignee rule plus instance data into a
// concrete user id
type AssigneeResolver interface {
	Resolve(ctx context.Context, organizationID string, rule entity.AssigneeRule, instanceData string) (string, error)
}
