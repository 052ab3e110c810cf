package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
)

// VersionRepository implements port.VersionRepository
type VersionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewVersionRepository creates a new document version repository
func NewVersionRepository(db *sqlite.DB, logger *zap.Logger) port.VersionRepository {
	return &VersionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a version snapshot
func (r *VersionRepository) Create(ctx context.Context, version *entity.DocumentVersion) error {
	query := `
		INSERT INTO document_versions (
			id, document_id, version_number, content, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		version.ID,
		version.DocumentID,
		version.VersionNumber,
		version.Content,
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document version", zap.Error(err))
		return fmt.Errorf("failed to create document version: %w", err)
	}

	return nil
}

// ListByDocumentID retrieves version history, newest first
func (r *VersionRepository) ListByDocumentID(ctx context.Context, documentID string) ([]*entity.DocumentVersion, error) {
	query := `
		SELECT id, document_id, version_number, content, created_by, created_at
		FROM document_versions
		WHERE document_id = ?
		ORDER BY version_number DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to list document versions", zap.String("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	defer rows.Close()

	var versions []*entity.DocumentVersion
	for rows.Next() {
		var v entity.DocumentVersion
		err := rows.Scan(
			&v.ID,
			&v.DocumentID,
			&v.VersionNumber,
			&v.Content,
			&v.CreatedBy,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document version: %w", err)
		}
		versions = append(versions, &v)
	}

	return versions, rows.Err()
}

// Verify interface compliance
var _ port.VersionRepository = (*VersionRepository)(nil)
