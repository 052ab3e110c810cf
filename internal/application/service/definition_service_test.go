package service

import (
	"context"
	"errors"
	"testing"

	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

func validSteps() []entity.Step {
	return []entity.Step{
		{Name: "review", Kind: entity.StepKindApproval, AssigneeRule: entity.AssigneeRule{Type: entity.AssigneeRuleUser, Value: "user-1"}},
	}
}

func TestDefinitionService_CreateDefinition(t *testing.T) {
	repo := &mockDefinitionRepo{}
	service := NewDefinitionService(repo, &mockLogger{})

	def, err := service.CreateDefinition(context.Background(), "org-1", "admin-1", "contract review", "", validSteps())
	if err != nil {
		t.Fatalf("CreateDefinition() error = %v", err)
	}

	if def.ID == "" {
		t.Error("def.ID not assigned")
	}
	if !def.IsActive {
		t.Error("new definition should be active")
	}
	if def.OrganizationID != "org-1" {
		t.Errorf("def.OrganizationID = %v, want org-1", def.OrganizationID)
	}
}

func TestDefinitionService_CreateDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		defNme string
		steps  []entity.Step
	}{
		{"empty name", "", validSteps()},
		{"no steps", "contract review", nil},
		{
			"unknown step kind",
			"contract review",
			[]entity.Step{{Kind: entity.StepKind("timer"), AssigneeRule: entity.AssigneeRule{Type: entity.AssigneeRuleUser, Value: "u"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewDefinitionService(&mockDefinitionRepo{}, &mockLogger{})

			_, err := service.CreateDefinition(context.Background(), "org-1", "admin-1", tt.defNme, "", tt.steps)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("CreateDefinition() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDefinitionService_GetDefinition_CrossTenant(t *testing.T) {
	repo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, id string) (*entity.WorkflowDefinition, error) {
			return &entity.WorkflowDefinition{ID: id, OrganizationID: "org-other"}, nil
		},
	}
	service := NewDefinitionService(repo, &mockLogger{})

	_, err := service.GetDefinition(context.Background(), "def-1", "org-1")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("GetDefinition() cross-tenant error = %v, want ErrNotFound", err)
	}
}
