package entity

import "time"

// WorkflowInstance is one running execution of a definition against one
// document. It is the mutable execution cursor: only the workflow engine
// moves CurrentStepIndex and Status, and never after a terminal status.
// Instances are retained for audit, never deleted.
type WorkflowInstance struct {
	ID                   string     `json:"id"`
	WorkflowDefinitionID string     `json:"workflow_definition_id"`
	DocumentID           string     `json:"document_id"`
	Status               string     `json:"status"`
	CurrentStepIndex     int        `json:"current_step_index"`
	AssignedTo           string     `json:"assigned_to"`
	Data                 string     `json:"data,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}
