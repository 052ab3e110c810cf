package workflow

// State represents a workflow instance state in its execution lifecycle
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateRejected   State = "rejected"
)

var validStates = map[State]bool{
	StatePending:    true,
	StateInProgress: true,
	StateCompleted:  true,
	StateRejected:   true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateRejected:  true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
