package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	domainwf "github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlite.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (
			id, workflow_definition_id, document_id, status,
			current_step_index, assigned_to, data, started_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowDefinitionID,
		instance.DocumentID,
		instance.Status,
		instance.CurrentStepIndex,
		instance.AssignedTo,
		instance.Data,
		instance.StartedAt,
		instance.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	query := `
		SELECT id, workflow_definition_id, document_id, status,
			current_step_index, assigned_to, data, started_at, completed_at, created_at
		FROM workflow_instances
		WHERE id = ?
	`

	var instance entity.WorkflowInstance
	var completedAt sql.NullTime

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&instance.ID,
		&instance.WorkflowDefinitionID,
		&instance.DocumentID,
		&instance.Status,
		&instance.CurrentStepIndex,
		&instance.AssignedTo,
		&instance.Data,
		&instance.StartedAt,
		&completedAt,
		&instance.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}

	return &instance, nil
}

// ListByOrganization retrieves instances for an organization, newest first
func (r *InstanceRepository) ListByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]*entity.WorkflowInstance, error) {
	query := `
		SELECT wi.id, wi.workflow_definition_id, wi.document_id, wi.status,
			wi.current_step_index, wi.assigned_to, wi.data, wi.started_at,
			wi.completed_at, wi.created_at
		FROM workflow_instances wi
		JOIN workflow_definitions wd ON wi.workflow_definition_id = wd.id
		WHERE wd.organization_id = ?
		ORDER BY wi.created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, organizationID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.String("org_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		var instance entity.WorkflowInstance
		var completedAt sql.NullTime

		err := rows.Scan(
			&instance.ID,
			&instance.WorkflowDefinitionID,
			&instance.DocumentID,
			&instance.Status,
			&instance.CurrentStepIndex,
			&instance.AssignedTo,
			&instance.Data,
			&instance.StartedAt,
			&completedAt,
			&instance.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		if completedAt.Valid {
			instance.CompletedAt = &completedAt.Time
		}

		instances = append(instances, &instance)
	}

	return instances, rows.Err()
}

// Advance moves the step cursor and reassigns the instance. The status
// predicate guards terminal instances: once completed or rejected the row
// never matches again.
func (r *InstanceRepository) Advance(ctx context.Context, id string, stepIndex int, assignedTo string) error {
	query := `
		UPDATE workflow_instances
		SET current_step_index = ?, assigned_to = ?
		WHERE id = ? AND status = ?
	`
	return r.guardedUpdate(ctx, id, query, stepIndex, assignedTo, id, domainwf.StateInProgress.String())
}

// MarkCompleted sets the terminal completed status
func (r *InstanceRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `
		UPDATE workflow_instances
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`
	return r.guardedUpdate(ctx, id, query, domainwf.StateCompleted.String(), completedAt, id, domainwf.StateInProgress.String())
}

// MarkRejected sets the terminal rejected status
func (r *InstanceRepository) MarkRejected(ctx context.Context, id string) error {
	query := `
		UPDATE workflow_instances
		SET status = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`
	return r.guardedUpdate(ctx, id, query, domainwf.StateRejected.String(), id, domainwf.StateInProgress.String())
}

func (r *InstanceRepository) guardedUpdate(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return conflictErr("instance %s is not in progress", id)
	}
	return nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
