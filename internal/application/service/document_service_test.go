package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
	"github.com/docuflow/docuflow/internal/domain/event"
)

type mockDocumentRepo struct {
	createFunc        func(ctx context.Context, doc *entity.Document) error
	getByIDFunc       func(ctx context.Context, id, orgID string) (*entity.Document, error)
	updateContentFunc func(ctx context.Context, doc *entity.Document, expectedVersion int64) error
	acquireLockFunc   func(ctx context.Context, id, userID string, lockedAt time.Time) error
	releaseLockFunc   func(ctx context.Context, id, userID string) error

	created   []*entity.Document
	persisted []entity.Document
	updates   int
	acquires  int
	releases  int
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, doc)
	}
	m.created = append(m.created, doc)
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id, orgID string) (*entity.Document, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id, orgID)
	}
	return nil, nil
}

func (m *mockDocumentRepo) List(ctx context.Context, orgID, status string, limit, offset int) ([]*entity.Document, error) {
	return nil, nil
}

func (m *mockDocumentRepo) UpdateContent(ctx context.Context, doc *entity.Document, expectedVersion int64) error {
	if m.updateContentFunc != nil {
		return m.updateContentFunc(ctx, doc, expectedVersion)
	}
	m.persisted = append(m.persisted, *doc)
	m.updates++
	return nil
}

func (m *mockDocumentRepo) AcquireLock(ctx context.Context, id, userID string, lockedAt time.Time) error {
	if m.acquireLockFunc != nil {
		return m.acquireLockFunc(ctx, id, userID, lockedAt)
	}
	m.acquires++
	return nil
}

func (m *mockDocumentRepo) ReleaseLock(ctx context.Context, id, userID string) error {
	if m.releaseLockFunc != nil {
		return m.releaseLockFunc(ctx, id, userID)
	}
	m.releases++
	return nil
}

type mockVersionRepo struct {
	createFunc func(ctx context.Context, version *entity.DocumentVersion) error

	versions []*entity.DocumentVersion
}

func (m *mockVersionRepo) Create(ctx context.Context, version *entity.DocumentVersion) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, version)
	}
	m.versions = append(m.versions, version)
	return nil
}

func (m *mockVersionRepo) ListByDocumentID(ctx context.Context, documentID string) ([]*entity.DocumentVersion, error) {
	return m.versions, nil
}

type documentFixture struct {
	documentRepo *mockDocumentRepo
	versionRepo  *mockVersionRepo
	dispatcher   *mockDispatcher
	service      DocumentService
}

func newDocumentFixture() *documentFixture {
	f := &documentFixture{
		documentRepo: &mockDocumentRepo{},
		versionRepo:  &mockVersionRepo{},
		dispatcher:   &mockDispatcher{},
	}
	f.service = NewDocumentService(
		f.documentRepo,
		f.versionRepo,
		&mockTxManager{},
		f.dispatcher,
		&mockLogger{},
	)
	return f
}

func storedDocument() *entity.Document {
	return &entity.Document{
		ID:             "doc-1",
		OrganizationID: "org-1",
		CreatedBy:      "author-1",
		Title:          "Service Agreement",
		Status:         entity.DocumentStatusDraft,
		Content:        "v1 body",
		Version:        3,
	}
}

func TestDocumentService_CreateDocument(t *testing.T) {
	f := newDocumentFixture()

	doc, err := f.service.CreateDocument(context.Background(), "org-1", "author-1", &entity.Document{
		Title:   "Service Agreement",
		Content: "draft body",
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	if doc.Version != 1 {
		t.Errorf("doc.Version = %d, want 1", doc.Version)
	}
	if doc.Status != entity.DocumentStatusDraft {
		t.Errorf("doc.Status = %v, want draft", doc.Status)
	}
	if doc.ID == "" {
		t.Error("doc.ID not assigned")
	}

	if len(f.versionRepo.versions) != 1 {
		t.Fatalf("version rows = %d, want 1", len(f.versionRepo.versions))
	}
	if f.versionRepo.versions[0].VersionNumber != 1 {
		t.Errorf("initial version number = %d, want 1", f.versionRepo.versions[0].VersionNumber)
	}
}

func TestDocumentService_Mutate(t *testing.T) {
	f := newDocumentFixture()
	f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
		return storedDocument(), nil
	}

	content := "v2 body"
	doc, err := f.service.Mutate(context.Background(), "doc-1", "org-1", "author-1", 3, DocumentChange{
		Content: &content,
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if doc.Version != 4 {
		t.Errorf("doc.Version = %d, want 4", doc.Version)
	}
	if doc.Content != "v2 body" {
		t.Errorf("doc.Content = %q, want %q", doc.Content, "v2 body")
	}
	// Untouched fields keep their values
	if doc.Title != "Service Agreement" {
		t.Errorf("doc.Title = %q, want unchanged", doc.Title)
	}

	if len(f.documentRepo.persisted) != 1 {
		t.Fatalf("persisted rows = %d, want 1", len(f.documentRepo.persisted))
	}
	stored := f.documentRepo.persisted[0]
	if stored.Content != "v2 body" {
		t.Errorf("persisted content = %q, want %q", stored.Content, "v2 body")
	}
	if stored.Title != "Service Agreement" {
		t.Errorf("persisted title = %q, want unchanged", stored.Title)
	}

	if len(f.versionRepo.versions) != 1 {
		t.Fatalf("version rows = %d, want 1", len(f.versionRepo.versions))
	}
	if f.versionRepo.versions[0].VersionNumber != 4 {
		t.Errorf("version row number = %d, want 4", f.versionRepo.versions[0].VersionNumber)
	}

	types := f.dispatcher.types()
	if len(types) != 1 || types[0] != event.TypeDocumentMutated {
		t.Errorf("dispatched events = %v, want [%v]", types, event.TypeDocumentMutated)
	}
}

func TestDocumentService_Mutate_TitleAndDescriptionPersisted(t *testing.T) {
	f := newDocumentFixture()
	f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
		return storedDocument(), nil
	}

	title := "Master Service Agreement"
	description := "renewal terms"
	doc, err := f.service.Mutate(context.Background(), "doc-1", "org-1", "author-1", 3, DocumentChange{
		Title:       &title,
		Description: &description,
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if len(f.documentRepo.persisted) != 1 {
		t.Fatalf("persisted rows = %d, want 1", len(f.documentRepo.persisted))
	}
	stored := f.documentRepo.persisted[0]

	// What the caller sees must be what the row holds
	if stored.Title != doc.Title {
		t.Errorf("persisted title = %q, returned title = %q", stored.Title, doc.Title)
	}
	if stored.Title != "Master Service Agreement" {
		t.Errorf("persisted title = %q, want %q", stored.Title, "Master Service Agreement")
	}
	if stored.Description != "renewal terms" {
		t.Errorf("persisted description = %q, want %q", stored.Description, "renewal terms")
	}
	if stored.Content != "v1 body" {
		t.Errorf("persisted content = %q, want unchanged", stored.Content)
	}
}

func TestDocumentService_Mutate_StaleVersion(t *testing.T) {
	f := newDocumentFixture()
	f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
		return storedDocument(), nil
	}

	content := "late write"
	_, err := f.service.Mutate(context.Background(), "doc-1", "org-1", "author-1", 2, DocumentChange{
		Content: &content,
	})
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("Mutate() error = %v, want ErrConflict", err)
	}

	if f.documentRepo.updates != 0 {
		t.Error("UpdateContent called despite stale version")
	}
	if len(f.versionRepo.versions) != 0 {
		t.Error("version row created despite stale version")
	}
}

func TestDocumentService_Mutate_LockedByAnotherUser(t *testing.T) {
	f := newDocumentFixture()
	f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
		doc := storedDocument()
		doc.IsLocked = true
		doc.LockedBy = "editor-2"
		return doc, nil
	}

	content := "blocked write"
	_, err := f.service.Mutate(context.Background(), "doc-1", "org-1", "author-1", 3, DocumentChange{
		Content: &content,
	})
	if !errors.Is(err, errs.ErrLocked) {
		t.Errorf("Mutate() error = %v, want ErrLocked", err)
	}
	if !errors.Is(err, errs.ErrConflict) {
		t.Errorf("Mutate() lock error should also match ErrConflict, got %v", err)
	}
}

func TestDocumentService_Mutate_HolderCanWriteWhileLocked(t *testing.T) {
	f := newDocumentFixture()
	f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
		doc := storedDocument()
		doc.IsLocked = true
		doc.LockedBy = "author-1"
		return doc, nil
	}

	content := "holder write"
	_, err := f.service.Mutate(context.Background(), "doc-1", "org-1", "author-1", 3, DocumentChange{
		Content: &content,
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v, lock holder must be able to write", err)
	}
}

func TestDocumentService_Mutate_NotFound(t *testing.T) {
	f := newDocumentFixture()

	content := "x"
	_, err := f.service.Mutate(context.Background(), "doc-gone", "org-1", "author-1", 1, DocumentChange{
		Content: &content,
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Mutate() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentService_AcquireLock(t *testing.T) {
	tests := []struct {
		name    string
		doc     *entity.Document
		userID  string
		wantErr error
	}{
		{
			name:   "free lock acquired",
			doc:    storedDocument(),
			userID: "editor-1",
		},
		{
			name: "reacquire own lock is idempotent",
			doc: func() *entity.Document {
				d := storedDocument()
				d.IsLocked = true
				d.LockedBy = "editor-1"
				return d
			}(),
			userID: "editor-1",
		},
		{
			name: "lock held by another user",
			doc: func() *entity.Document {
				d := storedDocument()
				d.IsLocked = true
				d.LockedBy = "editor-2"
				return d
			}(),
			userID:  "editor-1",
			wantErr: errs.ErrLocked,
		},
		{
			name:    "document not found",
			doc:     nil,
			userID:  "editor-1",
			wantErr: errs.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDocumentFixture()
			f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
				return tt.doc, nil
			}

			err := f.service.AcquireLock(context.Background(), "doc-1", "org-1", tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("AcquireLock() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("AcquireLock() error = %v", err)
			}
		})
	}
}

func TestDocumentService_ReleaseLock(t *testing.T) {
	tests := []struct {
		name     string
		doc      *entity.Document
		userID   string
		wantErr  error
		released int
	}{
		{
			name: "holder releases",
			doc: func() *entity.Document {
				d := storedDocument()
				d.IsLocked = true
				d.LockedBy = "editor-1"
				return d
			}(),
			userID:   "editor-1",
			released: 1,
		},
		{
			name:   "releasing an unlocked document is a no-op",
			doc:    storedDocument(),
			userID: "editor-1",
		},
		{
			name: "non-holder cannot release",
			doc: func() *entity.Document {
				d := storedDocument()
				d.IsLocked = true
				d.LockedBy = "editor-2"
				return d
			}(),
			userID:  "editor-1",
			wantErr: errs.ErrLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDocumentFixture()
			f.documentRepo.getByIDFunc = func(ctx context.Context, id, orgID string) (*entity.Document, error) {
				return tt.doc, nil
			}

			err := f.service.ReleaseLock(context.Background(), "doc-1", "org-1", tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReleaseLock() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("ReleaseLock() error = %v", err)
			}
			if f.documentRepo.releases != tt.released {
				t.Errorf("releases = %d, want %d", f.documentRepo.releases, tt.released)
			}
		})
	}
}

func TestMergeMetadata(t *testing.T) {
	merged := mergeMetadata(`{"author":"a","tags":["x"]}`, map[string]interface{}{
		"workflow_outcome": "approved",
	})

	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(merged), &meta); err != nil {
		t.Fatalf("merged metadata is not valid JSON: %v", err)
	}
	if meta["author"] != "a" {
		t.Errorf("existing key lost: %v", meta)
	}
	if meta["workflow_outcome"] != "approved" {
		t.Errorf("new key missing: %v", meta)
	}
}

func TestMergeMetadata_EmptyAndMalformed(t *testing.T) {
	for _, existing := range []string{"", "{broken"} {
		merged := mergeMetadata(existing, map[string]interface{}{"k": "v"})

		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(merged), &meta); err != nil {
			t.Fatalf("merged metadata is not valid JSON for existing=%q: %v", existing, err)
		}
		if meta["k"] != "v" {
			t.Errorf("key missing for existing=%q: %v", existing, meta)
		}
	}
}
