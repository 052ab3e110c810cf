package entity

import "time"

// Gate statuses. A gate transitions pending -> approved|rejected exactly
// once and is thereafter immutable.
const (
	GateStatusPending  = "pending"
	GateStatusApproved = "approved"
	GateStatusRejected = "rejected"
)

// Decision is the outcome a resolver hands to a pending gate
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid returns true if the decision is approve or reject
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ApprovalGate is a single pending-or-resolved human decision blocking
// advancement of a workflow instance. At most one pending gate exists per
// instance at any time; only the designated approver may resolve it.
type ApprovalGate struct {
	ID                 string     `json:"id"`
	DocumentID         string     `json:"document_id"`
	WorkflowInstanceID string     `json:"workflow_instance_id"`
	ApproverID         string     `json:"approver_id"`
	Status             string     `json:"status"`
	Comments           string     `json:"comments,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}
