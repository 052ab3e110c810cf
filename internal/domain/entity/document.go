package entity

import "time"

// Document statuses as stored in the documents table
const (
	DocumentStatusDraft     = "draft"
	DocumentStatusInReview  = "in_review"
	DocumentStatusApproved  = "approved"
	DocumentStatusRejected  = "rejected"
	DocumentStatusPublished = "published"
)

// Document is a versioned document record. Version is the optimistic
// concurrency token: it increases by exactly one per successful content
// mutation, and a writer must present the version it last read.
type Document struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	CreatedBy      string     `json:"created_by"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DocumentType   string     `json:"document_type,omitempty"`
	Status         string     `json:"status"`
	Content        string     `json:"content"`
	Metadata       string     `json:"metadata,omitempty"`
	Version        int64      `json:"version"`
	IsLocked       bool       `json:"is_locked"`
	LockedBy       string     `json:"locked_by,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DocumentVersion is an immutable snapshot of document content taken on
// every successful mutation.
type DocumentVersion struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int64     `json:"version_number"`
	Content       string    `json:"content"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
