package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
)

// GateRepository implements port.GateRepository
type GateRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewGateRepository creates a new gate repository
func NewGateRepository(db *sqlite.DB, logger *zap.Logger) port.GateRepository {
	return &GateRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new approval gate. The partial unique index on pending
// gates rejects a second pending gate for the same instance.
func (r *GateRepository) Create(ctx context.Context, gate *entity.ApprovalGate) error {
	query := `
		INSERT INTO approval_gates (
			id, document_id, workflow_instance_id, approver_id,
			status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		gate.ID,
		gate.DocumentID,
		gate.WorkflowInstanceID,
		gate.ApproverID,
		gate.Status,
		gate.Comments,
		gate.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create gate", zap.Error(err))
		return fmt.Errorf("failed to create gate: %w", err)
	}

	return nil
}

// GetByID retrieves a gate by ID
func (r *GateRepository) GetByID(ctx context.Context, id string) (*entity.ApprovalGate, error) {
	query := `
		SELECT id, document_id, workflow_instance_id, approver_id,
			status, comments, resolved_at, created_at
		FROM approval_gates
		WHERE id = ?
	`
	return r.scanOne(ctx, query, id)
}

// GetPendingByInstanceID retrieves the pending gate for an instance, if any
func (r *GateRepository) GetPendingByInstanceID(ctx context.Context, instanceID string) (*entity.ApprovalGate, error) {
	query := `
		SELECT id, document_id, workflow_instance_id, approver_id,
			status, comments, resolved_at, created_at
		FROM approval_gates
		WHERE workflow_instance_id = ? AND status = ?
	`
	return r.scanOne(ctx, query, instanceID, entity.GateStatusPending)
}

// Resolve transitions a gate out of pending with a compare-and-set. The
// predicate covers id, approver and pending status together, so a stale or
// concurrent resolution matches zero rows and surfaces as a conflict.
func (r *GateRepository) Resolve(ctx context.Context, id, approverID, status, comments string, resolvedAt time.Time) error {
	query := `
		UPDATE approval_gates
		SET status = ?, comments = ?, resolved_at = ?
		WHERE id = ? AND approver_id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		status, comments, resolvedAt, id, approverID, entity.GateStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to resolve gate", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to resolve gate: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return conflictErr("gate %s has no pending decision for approver %s", id, approverID)
	}
	return nil
}

func (r *GateRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*entity.ApprovalGate, error) {
	var gate entity.ApprovalGate
	var resolvedAt sql.NullTime

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&gate.ID,
		&gate.DocumentID,
		&gate.WorkflowInstanceID,
		&gate.ApproverID,
		&gate.Status,
		&gate.Comments,
		&resolvedAt,
		&gate.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get gate", zap.Error(err))
		return nil, fmt.Errorf("failed to get gate: %w", err)
	}

	if resolvedAt.Valid {
		gate.ResolvedAt = &resolvedAt.Time
	}

	return &gate, nil
}

// Verify interface compliance
var _ port.GateRepository = (*GateRepository)(nil)
