package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowStarted   Type = "workflow.started"
	TypeGateResolved      Type = "gate.resolved"
	TypeInstanceAdvanced  Type = "instance.advanced"
	TypeInstanceCompleted Type = "instance.completed"
	TypeInstanceRejected  Type = "instance.rejected"
	TypeDocumentMutated   Type = "document.mutated"
	TypeDocumentLocked    Type = "document.locked"
	TypeDocumentUnlocked  Type = "document.unlocked"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowStarted,
		TypeGateResolved,
		TypeInstanceAdvanced,
		TypeInstanceCompleted,
		TypeInstanceRejected,
		TypeDocumentMutated,
		TypeDocumentLocked,
		TypeDocumentUnlocked:
		return true
	default:
		return false
	}
}
