// Package assignee resolves workflow step assignee rules to concrete user
// ids. One strategy implementation exists per rule type, selected by the
// rule's tag; an unknown tag is an error, never a silent default.
package assignee

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

// strategy resolves one assignee rule type
type strategy interface {
	Resolve(ctx context.Context, organizationID string, rule entity.AssigneeRule, instanceData string) (string, error)
}

// Resolver dispatches to the strategy matching the rule type
type Resolver struct {
	strategies map[entity.AssigneeRuleType]strategy
}

// NewResolver creates a resolver with the standard strategies registered
func NewResolver(directory port.Directory) *Resolver {
	return &Resolver{
		strategies: map[entity.AssigneeRuleType]strategy{
			entity.AssigneeRuleUser:       &fixedUserStrategy{},
			entity.AssigneeRuleRole:       &roleStrategy{directory: directory},
			entity.AssigneeRuleRoundRobin: newRoundRobinStrategy(),
		},
	}
}

// Resolve returns the concrete user id for a step's assignee rule
func (r *Resolver) Resolve(ctx context.Context, organizationID string, rule entity.AssigneeRule, instanceData string) (string, error) {
	s, ok := r.strategies[rule.Type]
	if !ok {
		return "", fmt.Errorf("%w: no resolver for assignee rule type %q", errs.ErrValidation, rule.Type)
	}
	return s.Resolve(ctx, organizationID, rule, instanceData)
}

// fixedUserStrategy assigns the user id named by the rule value
type fixedUserStrategy struct{}

func (s *fixedUserStrategy) Resolve(_ context.Context, _ string, rule entity.AssigneeRule, _ string) (string, error) {
	if rule.Value == "" {
		return "", fmt.Errorf("%w: fixed user rule has empty value", errs.ErrValidation)
	}
	return rule.Value, nil
}

// roleStrategy assigns whoever currently holds the role in the organization
type roleStrategy struct {
	directory port.Directory
}

func (s *roleStrategy) Resolve(ctx context.Context, organizationID string, rule entity.AssigneeRule, _ string) (string, error) {
	userID, err := s.directory.ResolveRole(ctx, organizationID, rule.Value)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role %q: %w", rule.Value, err)
	}
	return userID, nil
}

// roundRobinStrategy rotates over a comma-separated member list. Counters
// are keyed per organization and member list, so tenants sharing a list
// rotate independently.
type roundRobinStrategy struct {
	mu       sync.Mutex
	counters map[string]int
}

func newRoundRobinStrategy() *roundRobinStrategy {
	return &roundRobinStrategy{counters: make(map[string]int)}
}

func (s *roundRobinStrategy) Resolve(_ context.Context, organizationID string, rule entity.AssigneeRule, _ string) (string, error) {
	members := splitMembers(rule.Value)
	if len(members) == 0 {
		return "", fmt.Errorf("%w: round robin rule has no members", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := organizationID + "/" + rule.Value
	idx := s.counters[key] % len(members)
	s.counters[key]++
	return members[idx], nil
}

func splitMembers(value string) []string {
	parts := strings.Split(value, ",")
	members := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			members = append(members, trimmed)
		}
	}
	return members
}

// Verify interface compliance
var _ port.AssigneeResolver = (*Resolver)(nil)
