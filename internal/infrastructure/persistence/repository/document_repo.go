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

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (
			id, organization_id, created_by, title, description, document_type,
			status, content, metadata, version, is_locked, locked_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		doc.ID,
		doc.OrganizationID,
		doc.CreatedBy,
		doc.Title,
		doc.Description,
		doc.DocumentType,
		doc.Status,
		doc.Content,
		doc.Metadata,
		doc.Version,
		doc.IsLocked,
		doc.LockedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document scoped to an organization
func (r *DocumentRepository) GetByID(ctx context.Context, id, organizationID string) (*entity.Document, error) {
	query := `
		SELECT id, organization_id, created_by, title, description, document_type,
			status, content, metadata, version, is_locked, locked_by, locked_at,
			created_at, updated_at
		FROM documents
		WHERE id = ? AND organization_id = ?
	`

	var doc entity.Document
	var lockedAt sql.NullTime

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id, organizationID).Scan(
		&doc.ID,
		&doc.OrganizationID,
		&doc.CreatedBy,
		&doc.Title,
		&doc.Description,
		&doc.DocumentType,
		&doc.Status,
		&doc.Content,
		&doc.Metadata,
		&doc.Version,
		&doc.IsLocked,
		&doc.LockedBy,
		&lockedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if lockedAt.Valid {
		doc.LockedAt = &lockedAt.Time
	}

	return &doc, nil
}

// List retrieves documents for an organization with an optional status filter
func (r *DocumentRepository) List(ctx context.Context, organizationID, status string, limit, offset int) ([]*entity.Document, error) {
	query := `
		SELECT id, organization_id, created_by, title, description, document_type,
			status, content, metadata, version, is_locked, locked_by, locked_at,
			created_at, updated_at
		FROM documents
		WHERE organization_id = ?
	`
	args := []interface{}{organizationID}

	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("org_id", organizationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		var doc entity.Document
		var lockedAt sql.NullTime

		err := rows.Scan(
			&doc.ID,
			&doc.OrganizationID,
			&doc.CreatedBy,
			&doc.Title,
			&doc.Description,
			&doc.DocumentType,
			&doc.Status,
			&doc.Content,
			&doc.Metadata,
			&doc.Version,
			&doc.IsLocked,
			&doc.LockedBy,
			&lockedAt,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		if lockedAt.Valid {
			doc.LockedAt = &lockedAt.Time
		}

		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// UpdateContent persists a mutated document with the optimistic version
// predicate. Two concurrent writers presenting the same expected version
// race on the WHERE clause; exactly one statement matches the row.
func (r *DocumentRepository) UpdateContent(ctx context.Context, doc *entity.Document, expectedVersion int64) error {
	query := `
		UPDATE documents
		SET title = ?, description = ?, content = ?, metadata = ?, status = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		doc.Title, doc.Description, doc.Content, doc.Metadata, doc.Status,
		doc.ID, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update document", zap.String("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return conflictErr("document %s version %d is stale", doc.ID, expectedVersion)
	}
	return nil
}

// AcquireLock sets the lock if free or already held by the user
func (r *DocumentRepository) AcquireLock(ctx context.Context, id, userID string, lockedAt time.Time) error {
	query := `
		UPDATE documents
		SET is_locked = 1, locked_by = ?, locked_at = ?
		WHERE id = ? AND (is_locked = 0 OR locked_by = ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, userID, lockedAt, id, userID)
	if err != nil {
		r.logger.Error("Failed to acquire lock", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return conflictErr("document %s is locked by another user", id)
	}
	return nil
}

// ReleaseLock clears the lock if held by the user
func (r *DocumentRepository) ReleaseLock(ctx context.Context, id, userID string) error {
	query := `
		UPDATE documents
		SET is_locked = 0, locked_by = '', locked_at = NULL
		WHERE id = ? AND locked_by = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to release lock", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to release lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return conflictErr("document %s is not locked by %s", id, userID)
	}
	return nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
