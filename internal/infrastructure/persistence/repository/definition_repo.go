package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
)

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sqlite.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new workflow definition with its encoded step list
func (r *DefinitionRepository) Create(ctx context.Context, def *entity.WorkflowDefinition) error {
	steps, err := entity.EncodeSteps(def.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_definitions (
			id, organization_id, name, description, steps, is_active,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		def.ID,
		def.OrganizationID,
		def.Name,
		def.Description,
		steps,
		def.IsActive,
		def.CreatedBy,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create definition", zap.Error(err))
		return fmt.Errorf("failed to create definition: %w", err)
	}

	return nil
}

// GetByID retrieves a definition by ID regardless of active flag
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, steps, is_active,
			created_by, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ?
	`
	return r.scanOne(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
}

// GetActive retrieves a definition only if it is active
func (r *DefinitionRepository) GetActive(ctx context.Context, id, organizationID string) (*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, steps, is_active,
			created_by, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ? AND organization_id = ? AND is_active = 1
	`
	return r.scanOne(r.db.Executor(ctx).QueryRowContext(ctx, query, id, organizationID))
}

// List retrieves all definitions for an organization, newest first
func (r *DefinitionRepository) List(ctx context.Context, organizationID string) ([]*entity.WorkflowDefinition, error) {
	query := `
		SELECT id, organization_id, name, description, steps, is_active,
			created_by, created_at, updated_at
		FROM workflow_definitions
		WHERE organization_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, organizationID)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.String("org_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		def, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// SetActive toggles a definition's active flag
func (r *DefinitionRepository) SetActive(ctx context.Context, id, organizationID string, active bool) error {
	query := `
		UPDATE workflow_definitions
		SET is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND organization_id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, active, id, organizationID)
	if err != nil {
		r.logger.Error("Failed to set definition active flag", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set active flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFoundErr("workflow definition", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *DefinitionRepository) scanOne(row *sql.Row) (*entity.WorkflowDefinition, error) {
	def, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

func (r *DefinitionRepository) scanRow(row rowScanner) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	var rawSteps string

	err := row.Scan(
		&def.ID,
		&def.OrganizationID,
		&def.Name,
		&def.Description,
		&rawSteps,
		&def.IsActive,
		&def.CreatedBy,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		r.logger.Error("Failed to scan definition", zap.Error(err))
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	// Steps were validated at write time; a decode failure here means the
	// row was tampered with outside the sanctioned write path.
	steps, err := entity.ParseSteps(rawSteps)
	if err != nil {
		return nil, fmt.Errorf("definition %s has invalid steps: %w", def.ID, err)
	}
	def.Steps = steps

	return &def, nil
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
