package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuflow/docuflow/internal/domain/errs"
)

// StepKind identifies how a workflow step completes
type StepKind string

const (
	// StepKindApproval gates advancement on a human approve/reject decision
	StepKindApproval StepKind = "approval"
	// StepKindAction advances on an external action-completion signal
	StepKindAction StepKind = "action"
)

// IsValid returns true if the kind is one of the defined step kinds
func (k StepKind) IsValid() bool {
	return k == StepKindApproval || k == StepKindAction
}

// AssigneeRuleType selects the strategy used to resolve a step's assignee
type AssigneeRuleType string

const (
	// AssigneeRuleUser assigns a fixed user id
	AssigneeRuleUser AssigneeRuleType = "user"
	// AssigneeRuleRole assigns whoever currently holds a role in the organization
	AssigneeRuleRole AssigneeRuleType = "role"
	// AssigneeRuleRoundRobin rotates over a fixed member list
	AssigneeRuleRoundRobin AssigneeRuleType = "round_robin"
)

// IsValid returns true if the rule type is one of the defined strategies
func (t AssigneeRuleType) IsValid() bool {
	switch t {
	case AssigneeRuleUser, AssigneeRuleRole, AssigneeRuleRoundRobin:
		return true
	default:
		return false
	}
}

// AssigneeRule describes how to resolve a step's assignee. Value holds a
// user id for "user", a role name for "role", and a comma-separated member
// list for "round_robin".
type AssigneeRule struct {
	Type  AssigneeRuleType `json:"type"`
	Value string           `json:"value"`
}

// Step is one entry in a definition's ordered step list
type Step struct {
	Name         string       `json:"name,omitempty"`
	Kind         StepKind     `json:"kind"`
	AssigneeRule AssigneeRule `json:"assignee_rule"`
}

// WorkflowDefinition is an ordered step template. It is immutable once
// referenced by a running instance; deactivating it only blocks new starts.
type WorkflowDefinition struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Steps          []Step    `json:"steps"`
	IsActive       bool      `json:"is_active"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StepAt returns the step at the given index
func (d *WorkflowDefinition) StepAt(index int) (Step, error) {
	if index < 0 || index >= len(d.Steps) {
		return Step{}, fmt.Errorf("step index %d out of range (definition has %d steps)", index, len(d.Steps))
	}
	return d.Steps[index], nil
}

// ValidateSteps checks the step list for structural validity. An unknown
// step kind or rule type is an error, never a silent fall-through.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: definition must have at least one step", errs.ErrValidation)
	}
	for i, step := range steps {
		if !step.Kind.IsValid() {
			return fmt.Errorf("%w: step %d has unknown kind %q", errs.ErrValidation, i, step.Kind)
		}
		if !step.AssigneeRule.Type.IsValid() {
			return fmt.Errorf("%w: step %d has unknown assignee rule type %q", errs.ErrValidation, i, step.AssigneeRule.Type)
		}
		if step.AssigneeRule.Value == "" {
			return fmt.Errorf("%w: step %d has empty assignee rule value", errs.ErrValidation, i)
		}
	}
	return nil
}

// ParseSteps decodes and validates a JSON-encoded step list. Called at
// definition load so every later StepAt access can trust the shape.
func ParseSteps(raw string) ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("%w: malformed steps: %v", errs.ErrValidation, err)
	}
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// EncodeSteps encodes a validated step list for storage
func EncodeSteps(steps []Step) (string, error) {
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to encode steps: %w", err)
	}
	return string(data), nil
}
