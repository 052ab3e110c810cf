package port

import (
	"context"
	"time"

	"github.com/docuflow/docuflow/internal/domain/entity"
)

// DefinitionRepository defines persistence operations for WorkflowDefinition
type DefinitionRepository interface {
	Create(ctx context.Context, def *entity.WorkflowDefinition) error

	// GetByID retrieves a definition by id, active or not. Unscoped because
	// the engine follows instance references across the org boundary check
	// already enforced at start time.
	GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error)

	// GetActive retrieves a definition only if it is active; inactive or
	// missing definitions both return nil
	GetActive(ctx context.Context, id, organizationID string) (*entity.WorkflowDefinition, error)

	List(ctx context.Context, organizationID string) ([]*entity.WorkflowDefinition, error)
	SetActive(ctx context.Context, id, organizationID string, active bool) error
}

// InstanceRepository defines persistence operations for WorkflowInstance.
// The guarded mutations only apply while the instance is in progress; they
// return errs.ErrConflict when the row has already reached a terminal state.
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]*entity.WorkflowInstance, error)

	// Advance moves the step cursor and reassigns the instance
	Advance(ctx context.Context, id string, stepIndex int, assignedTo string) error

	// MarkCompleted sets the terminal completed status and completion time
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error

	// MarkRejected sets the terminal rejected status
	MarkRejected(ctx context.Context, id string) error
}

// GateRepository defines persistence operations for ApprovalGate
type GateRepository interface {
	Create(ctx context.Context, gate *entity.ApprovalGate) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalGate, error)
	GetPendingByInstanceID(ctx context.Context, instanceID string) (*entity.ApprovalGate, error)

	// Resolve transitions a gate from pending to the given status with a
	// compare-and-set on (id, approver, pending). Exactly one of two
	// concurrent resolutions can succeed; the loser gets errs.ErrConflict.
	Resolve(ctx context.Context, id, approverID, status, comments string, resolvedAt time.Time) error
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id, organizationID string) (*entity.Document, error)
	List(ctx context.Context, organizationID, status string, limit, offset int) ([]*entity.Document, error)

	// UpdateContent persists a mutated document guarded by the optimistic
	// version check (WHERE version = expectedVersion). All mutable columns
	// are written from doc. Returns errs.ErrConflict when the check fails.
	UpdateContent(ctx context.Context, doc *entity.Document, expectedVersion int64) error

	// AcquireLock sets the lock if it is free or already held by the user
	AcquireLock(ctx context.Context, id, userID string, lockedAt time.Time) error

	// ReleaseLock clears the lock if held by the user
	ReleaseLock(ctx context.Context, id, userID string) error
}

// VersionRepository defines persistence operations for DocumentVersion
type VersionRepository interface {
	Create(ctx context.Context, version *entity.DocumentVersion) error
	ListByDocumentID(ctx context.Context, documentID string) ([]*entity.DocumentVersion, error)
}

// AuditRepository defines persistence operations for AuditEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
