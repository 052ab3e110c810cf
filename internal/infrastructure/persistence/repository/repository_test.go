package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/repository"
	"github.com/docuflow/docuflow/internal/infrastructure/persistence/sqlite"
	"github.com/docuflow/docuflow/pkg/database"
)

// setupTestDB opens a real sqlite database in a temp dir with the full
// schema applied, so the tests exercise the actual SQL predicates rather
// than mocks.
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	sqlDB, err := database.Open(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator := database.NewMigrator(sqlDB, logger)
	require.NoError(t, migrator.RunMigrations("../../../../migrations"))

	return sqlite.NewDB(sqlDB, logger)
}

// seedInstance inserts a definition, a document and a running instance,
// satisfying the foreign keys the gate rows reference.
func seedInstance(t *testing.T, db *sqlite.DB) (docID, instanceID string) {
	t.Helper()

	ctx := context.Background()
	logger := zap.NewNop()
	now := time.Now()

	defID := uuid.NewString()
	definition := &entity.WorkflowDefinition{
		ID:             defID,
		OrganizationID: "org-1",
		Name:           "contract review",
		Steps: []entity.Step{
			{Name: "review", Kind: entity.StepKindApproval, AssigneeRule: entity.AssigneeRule{Type: entity.AssigneeRuleUser, Value: "approver-1"}},
		},
		IsActive:  true,
		CreatedBy: "admin-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repository.NewDefinitionRepository(db, logger).Create(ctx, definition))

	docID = uuid.NewString()
	doc := &entity.Document{
		ID:             docID,
		OrganizationID: "org-1",
		CreatedBy:      "author-1",
		Title:          "Service Agreement",
		Status:         entity.DocumentStatusDraft,
		Content:        "v1 body",
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repository.NewDocumentRepository(db, logger).Create(ctx, doc))

	instanceID = uuid.NewString()
	instance := &entity.WorkflowInstance{
		ID:                   instanceID,
		WorkflowDefinitionID: defID,
		DocumentID:           docID,
		Status:               "in_progress",
		AssignedTo:           "approver-1",
		StartedAt:            now,
		CreatedAt:            now,
	}
	require.NoError(t, repository.NewInstanceRepository(db, logger).Create(ctx, instance))

	return docID, instanceID
}

func newPendingGate(docID, instanceID, approverID string) *entity.ApprovalGate {
	return &entity.ApprovalGate{
		ID:                 uuid.NewString(),
		DocumentID:         docID,
		WorkflowInstanceID: instanceID,
		ApproverID:         approverID,
		Status:             entity.GateStatusPending,
		CreatedAt:          time.Now(),
	}
}

func TestGateRepository_ResolveIsCompareAndSet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gates := repository.NewGateRepository(db, zap.NewNop())

	docID, instanceID := seedInstance(t, db)
	gate := newPendingGate(docID, instanceID, "approver-1")
	require.NoError(t, gates.Create(ctx, gate))

	t.Run("wrong approver matches zero rows", func(t *testing.T) {
		err := gates.Resolve(ctx, gate.ID, "intruder-1", entity.GateStatusApproved, "", time.Now())
		assert.ErrorIs(t, err, errs.ErrConflict)

		stored, err := gates.GetByID(ctx, gate.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.GateStatusPending, stored.Status)
	})

	t.Run("first resolution wins", func(t *testing.T) {
		err := gates.Resolve(ctx, gate.ID, "approver-1", entity.GateStatusApproved, "looks good", time.Now())
		require.NoError(t, err)

		stored, err := gates.GetByID(ctx, gate.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.GateStatusApproved, stored.Status)
		assert.Equal(t, "looks good", stored.Comments)
		require.NotNil(t, stored.ResolvedAt)
	})

	t.Run("second resolution loses", func(t *testing.T) {
		err := gates.Resolve(ctx, gate.ID, "approver-1", entity.GateStatusRejected, "changed my mind", time.Now())
		assert.ErrorIs(t, err, errs.ErrConflict)

		stored, err := gates.GetByID(ctx, gate.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.GateStatusApproved, stored.Status)
		assert.Equal(t, "looks good", stored.Comments)
	})
}

func TestGateRepository_ConcurrentResolveOneWinner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gates := repository.NewGateRepository(db, zap.NewNop())

	docID, instanceID := seedInstance(t, db)
	gate := newPendingGate(docID, instanceID, "approver-1")
	require.NoError(t, gates.Create(ctx, gate))

	// Two transactions race on the same pending gate. The write lock
	// serializes them, and the CAS predicate turns the loser away.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, status := range []string{entity.GateStatusApproved, entity.GateStatusRejected} {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			results <- db.WithTransaction(ctx, func(txCtx context.Context) error {
				return gates.Resolve(txCtx, gate.ID, "approver-1", status, "", time.Now())
			})
		}(status)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, errs.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one resolution must win")
	assert.Equal(t, 1, conflicts, "the loser must see a conflict")

	stored, err := gates.GetByID(ctx, gate.ID)
	require.NoError(t, err)
	assert.NotEqual(t, entity.GateStatusPending, stored.Status)
}

func TestGateRepository_OnePendingGatePerInstance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	gates := repository.NewGateRepository(db, zap.NewNop())

	docID, instanceID := seedInstance(t, db)
	first := newPendingGate(docID, instanceID, "approver-1")
	require.NoError(t, gates.Create(ctx, first))

	// The partial unique index blocks a second pending gate
	second := newPendingGate(docID, instanceID, "approver-2")
	assert.Error(t, gates.Create(ctx, second))

	// Once the first gate is resolved a new pending gate is allowed
	require.NoError(t, gates.Resolve(ctx, first.ID, "approver-1", entity.GateStatusApproved, "", time.Now()))
	assert.NoError(t, gates.Create(ctx, second))

	pending, err := gates.GetPendingByInstanceID(ctx, instanceID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, second.ID, pending.ID)
}

func TestDocumentRepository_UpdateContentVersionPredicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	docs := repository.NewDocumentRepository(db, zap.NewNop())

	docID, _ := seedInstance(t, db)

	doc, err := docs.GetByID(ctx, docID, "org-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.EqualValues(t, 1, doc.Version)

	doc.Title = "Master Service Agreement"
	doc.Description = "renewal terms"
	doc.Content = "v2 body"
	doc.Status = entity.DocumentStatusInReview
	require.NoError(t, docs.UpdateContent(ctx, doc, 1))

	stored, err := docs.GetByID(ctx, docID, "org-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version)
	assert.Equal(t, "Master Service Agreement", stored.Title)
	assert.Equal(t, "renewal terms", stored.Description)
	assert.Equal(t, "v2 body", stored.Content)
	assert.Equal(t, entity.DocumentStatusInReview, stored.Status)

	// A writer still presenting version 1 is stale and must not win
	doc.Content = "late write"
	err = docs.UpdateContent(ctx, doc, 1)
	assert.ErrorIs(t, err, errs.ErrConflict)

	stored, err = docs.GetByID(ctx, docID, "org-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.Version)
	assert.Equal(t, "v2 body", stored.Content)
}

func TestDocumentRepository_LockPredicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	docs := repository.NewDocumentRepository(db, zap.NewNop())

	docID, _ := seedInstance(t, db)

	require.NoError(t, docs.AcquireLock(ctx, docID, "editor-1", time.Now()))

	t.Run("holder reacquires", func(t *testing.T) {
		assert.NoError(t, docs.AcquireLock(ctx, docID, "editor-1", time.Now()))
	})

	t.Run("other user is turned away", func(t *testing.T) {
		err := docs.AcquireLock(ctx, docID, "editor-2", time.Now())
		assert.ErrorIs(t, err, errs.ErrConflict)

		stored, err := docs.GetByID(ctx, docID, "org-1")
		require.NoError(t, err)
		assert.True(t, stored.IsLocked)
		assert.Equal(t, "editor-1", stored.LockedBy)
	})

	t.Run("only the holder releases", func(t *testing.T) {
		err := docs.ReleaseLock(ctx, docID, "editor-2")
		assert.ErrorIs(t, err, errs.ErrConflict)

		require.NoError(t, docs.ReleaseLock(ctx, docID, "editor-1"))

		stored, err := docs.GetByID(ctx, docID, "org-1")
		require.NoError(t, err)
		assert.False(t, stored.IsLocked)
		assert.Empty(t, stored.LockedBy)
	})
}
