package entity

import "time"

// AuditEntry records one action against one resource. Audit recording is
// best-effort: a failed write is logged and swallowed, never surfaced.
type AuditEntry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Action         string    `json:"action"`
	ResourceType   string    `json:"resource_type"`
	ResourceID     string    `json:"resource_id"`
	Details        string    `json:"details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
