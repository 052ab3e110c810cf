package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/application/dispatcher"
	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
	"github.com/docuflow/docuflow/internal/domain/event"
)

// DocumentService manages versioned documents: creation, optimistic-locked
// mutation, lock lifecycle, and version history.
type DocumentService interface {
	CreateDocument(ctx context.Context, orgID, userID string, doc *entity.Document) (*entity.Document, error)
	GetDocument(ctx context.Context, id, orgID string) (*entity.Document, error)
	ListDocuments(ctx context.Context, orgID, status string, limit, offset int) ([]*entity.Document, error)

	// Mutate is the only sanctioned write path for document content. It
	// fails with a conflict if the document is locked by someone other than
	// the caller or if expectedVersion no longer matches. Conflicts are
	// surfaced, never retried internally.
	Mutate(ctx context.Context, id, orgID, userID string, expectedVersion int64, change DocumentChange) (*entity.Document, error)

	ListVersions(ctx context.Context, id, orgID string) ([]*entity.DocumentVersion, error)

	// AcquireLock is idempotent for the holder and conflicts for anyone else
	AcquireLock(ctx context.Context, id, orgID, userID string) error
	ReleaseLock(ctx context.Context, id, orgID, userID string) error
}

type documentServiceImpl struct {
	documentRepo port.DocumentRepository
	versionRepo  port.VersionRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documentRepo port.DocumentRepository,
	versionRepo port.VersionRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		documentRepo: documentRepo,
		versionRepo:  versionRepo,
		txManager:    txManager,
		dispatcher:   d,
		logger:       logger,
	}
}

// CreateDocument creates a document at version 1 with its initial version row
func (s *documentServiceImpl) CreateDocument(ctx context.Context, orgID, userID string, doc *entity.Document) (*entity.Document, error) {
	now := time.Now()
	doc.ID = uuid.NewString()
	doc.OrganizationID = orgID
	doc.CreatedBy = userID
	if doc.Status == "" {
		doc.Status = entity.DocumentStatusDraft
	}
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.documentRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		initial := &entity.DocumentVersion{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			VersionNumber: 1,
			Content:       doc.Content,
			CreatedBy:     userID,
			CreatedAt:     now,
		}
		if err := s.versionRepo.Create(txCtx, initial); err != nil {
			return fmt.Errorf("create initial version: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create document", "error", err, "org_id", orgID)
		return nil, wrapTxErr(err)
	}

	s.logger.Info("Document created", "id", doc.ID, "org_id", orgID)
	return doc, nil
}

// GetDocument retrieves a document scoped to an organization
func (s *documentServiceImpl) GetDocument(ctx context.Context, id, orgID string) (*entity.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", errs.ErrNotFound, id)
	}
	return doc, nil
}

// ListDocuments lists documents for an organization with optional status filter
func (s *documentServiceImpl) ListDocuments(ctx context.Context, orgID, status string, limit, offset int) ([]*entity.Document, error) {
	return s.documentRepo.List(ctx, orgID, status, limit, offset)
}

// Mutate applies a partial change guarded by the optimistic version check
func (s *documentServiceImpl) Mutate(ctx context.Context, id, orgID, userID string, expectedVersion int64, change DocumentChange) (*entity.Document, error) {
	var updated *entity.Document

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		doc, err := s.documentRepo.GetByID(txCtx, id, orgID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %s", errs.ErrNotFound, id)
		}
		if doc.IsLocked && doc.LockedBy != userID {
			return fmt.Errorf("%w: held by %s", errs.ErrLocked, doc.LockedBy)
		}
		if doc.Version != expectedVersion {
			return fmt.Errorf("%w: expected version %d, current is %d", errs.ErrConflict, expectedVersion, doc.Version)
		}

		if change.Title != nil {
			doc.Title = *change.Title
		}
		if change.Description != nil {
			doc.Description = *change.Description
		}
		if change.Content != nil {
			doc.Content = *change.Content
		}
		if change.Metadata != nil {
			doc.Metadata = *change.Metadata
		}
		if change.Status != nil {
			doc.Status = *change.Status
		}

		// The version predicate in the UPDATE is the authority: under a
		// concurrent writer exactly one statement matches the row.
		if err := s.documentRepo.UpdateContent(txCtx, doc, expectedVersion); err != nil {
			return err
		}

		doc.Version = expectedVersion + 1
		doc.UpdatedAt = time.Now()

		version := &entity.DocumentVersion{
			ID:            uuid.NewString(),
			DocumentID:    id,
			VersionNumber: doc.Version,
			Content:       doc.Content,
			CreatedBy:     userID,
			CreatedAt:     doc.UpdatedAt,
		}
		if err := s.versionRepo.Create(txCtx, version); err != nil {
			return fmt.Errorf("create version record: %w", err)
		}

		updated = doc
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeDocumentMutated, orgID, userID, "document", id,
			map[string]interface{}{"version": updated.Version},
		))
	}

	s.logger.Info("Document mutated", "id", id, "version", updated.Version, "user_id", userID)
	return updated, nil
}

// ListVersions returns the version history for a document
func (s *documentServiceImpl) ListVersions(ctx context.Context, id, orgID string) ([]*entity.DocumentVersion, error) {
	doc, err := s.documentRepo.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", errs.ErrNotFound, id)
	}
	return s.versionRepo.ListByDocumentID(ctx, id)
}

// AcquireLock takes the document lock for a user
func (s *documentServiceImpl) AcquireLock(ctx context.Context, id, orgID, userID string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		doc, err := s.documentRepo.GetByID(txCtx, id, orgID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %s", errs.ErrNotFound, id)
		}
		if doc.IsLocked && doc.LockedBy != userID {
			return fmt.Errorf("%w: held by %s", errs.ErrLocked, doc.LockedBy)
		}
		return s.documentRepo.AcquireLock(txCtx, id, userID, time.Now())
	})
	if err != nil {
		return wrapTxErr(err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeDocumentLocked, orgID, userID, "document", id, nil,
		))
	}
	return nil
}

// ReleaseLock releases the document lock held by a user
func (s *documentServiceImpl) ReleaseLock(ctx context.Context, id, orgID, userID string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		doc, err := s.documentRepo.GetByID(txCtx, id, orgID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %s", errs.ErrNotFound, id)
		}
		if !doc.IsLocked {
			return nil
		}
		if doc.LockedBy != userID {
			return fmt.Errorf("%w: held by %s", errs.ErrLocked, doc.LockedBy)
		}
		return s.documentRepo.ReleaseLock(txCtx, id, userID)
	})
	if err != nil {
		return wrapTxErr(err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeDocumentUnlocked, orgID, userID, "document", id, nil,
		))
	}
	return nil
}

// mergeMetadata sets keys into a JSON object string, tolerating an empty or
// malformed existing value by starting fresh.
func mergeMetadata(existing string, updates map[string]interface{}) string {
	meta := make(map[string]interface{})
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &meta)
	}
	for k, v := range updates {
		meta[k] = v
	}
	merged, err := json.Marshal(meta)
	if err != nil {
		return existing
	}
	return string(merged)
}
