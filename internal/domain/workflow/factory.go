package workflow

// NewInstanceMachine creates a state machine configured for the document
// workflow instance lifecycle. ADVANCE is a self-transition: the instance
// stays in progress while the step cursor moves, until the final step
// completes or any gate is rejected.
func NewInstanceMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StatePending).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StateInProgress).
		Permit(TriggerAdvance, StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerReject, StateRejected)

	// COMPLETED and REJECTED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
