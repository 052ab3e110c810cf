package assignee

import (
	"context"
	"errors"
	"testing"

	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

type mockDirectory struct {
	resolveRoleFunc func(ctx context.Context, orgID, role string) (string, error)
}

func (m *mockDirectory) ResolveRole(ctx context.Context, orgID, role string) (string, error) {
	if m.resolveRoleFunc != nil {
		return m.resolveRoleFunc(ctx, orgID, role)
	}
	return "", errors.New("no assignment")
}

func TestResolver_FixedUser(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})

	got, err := resolver.Resolve(context.Background(), "org-1",
		entity.AssigneeRule{Type: entity.AssigneeRuleUser, Value: "user-9"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "user-9" {
		t.Errorf("Resolve() = %v, want user-9", got)
	}
}

func TestResolver_Role(t *testing.T) {
	directory := &mockDirectory{
		resolveRoleFunc: func(ctx context.Context, orgID, role string) (string, error) {
			if orgID == "org-1" && role == "approver" {
				return "user-42", nil
			}
			return "", errors.New("no assignment")
		},
	}
	resolver := NewResolver(directory)

	got, err := resolver.Resolve(context.Background(), "org-1",
		entity.AssigneeRule{Type: entity.AssigneeRuleRole, Value: "approver"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "user-42" {
		t.Errorf("Resolve() = %v, want user-42", got)
	}
}

func TestResolver_Role_Unassigned(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})

	_, err := resolver.Resolve(context.Background(), "org-1",
		entity.AssigneeRule{Type: entity.AssigneeRuleRole, Value: "approver"}, "")
	if err == nil {
		t.Error("Resolve() should fail when no one holds the role")
	}
}

func TestResolver_RoundRobinRotates(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})
	rule := entity.AssigneeRule{Type: entity.AssigneeRuleRoundRobin, Value: "a, b, c"}

	want := []string{"a", "b", "c", "a", "b"}
	for i, expected := range want {
		got, err := resolver.Resolve(context.Background(), "org-1", rule, "")
		if err != nil {
			t.Fatalf("Resolve() #%d error = %v", i, err)
		}
		if got != expected {
			t.Errorf("Resolve() #%d = %v, want %v", i, got, expected)
		}
	}
}

func TestResolver_RoundRobinIndependentLists(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})
	ruleA := entity.AssigneeRule{Type: entity.AssigneeRuleRoundRobin, Value: "a,b"}
	ruleB := entity.AssigneeRule{Type: entity.AssigneeRuleRoundRobin, Value: "x,y"}

	first, _ := resolver.Resolve(context.Background(), "org-1", ruleA, "")
	second, _ := resolver.Resolve(context.Background(), "org-1", ruleB, "")

	if first != "a" || second != "x" {
		t.Errorf("lists should rotate independently, got %v and %v", first, second)
	}
}

func TestResolver_RoundRobinScopedPerOrganization(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})
	rule := entity.AssigneeRule{Type: entity.AssigneeRuleRoundRobin, Value: "a,b"}

	// org-1 consumes a rotation step; org-2 must still start at the top
	first, _ := resolver.Resolve(context.Background(), "org-1", rule, "")
	other, _ := resolver.Resolve(context.Background(), "org-2", rule, "")

	if first != "a" {
		t.Errorf("org-1 first assignment = %v, want a", first)
	}
	if other != "a" {
		t.Errorf("org-2 first assignment = %v, want a; cursor leaked across organizations", other)
	}
}

func TestResolver_UnknownRuleType(t *testing.T) {
	resolver := NewResolver(&mockDirectory{})

	_, err := resolver.Resolve(context.Background(), "org-1",
		entity.AssigneeRule{Type: entity.AssigneeRuleType("lottery"), Value: "x"}, "")
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Resolve() error = %v, want ErrValidation", err)
	}
}
