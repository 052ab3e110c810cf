package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerAdvance  Trigger = "ADVANCE"
	TriggerComplete Trigger = "COMPLETE"
	TriggerReject   Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
