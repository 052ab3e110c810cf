package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlite.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit log entry
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (
			id, organization_id, user_id, action, resource_type,
			resource_id, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry", zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
