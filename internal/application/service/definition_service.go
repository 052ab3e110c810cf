package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
)

// DefinitionService manages workflow definitions. Steps are validated to
// typed form at write time; a stored definition is immutable apart from its
// active flag, and deactivating never touches running instances.
type DefinitionService interface {
	CreateDefinition(ctx context.Context, orgID, createdBy, name, description string, steps []entity.Step) (*entity.WorkflowDefinition, error)
	GetDefinition(ctx context.Context, id, orgID string) (*entity.WorkflowDefinition, error)
	ListDefinitions(ctx context.Context, orgID string) ([]*entity.WorkflowDefinition, error)
	SetActive(ctx context.Context, id, orgID string, active bool) error
}

type definitionServiceImpl struct {
	definitionRepo port.DefinitionRepository
	logger         Logger
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(definitionRepo port.DefinitionRepository, logger Logger) DefinitionService {
	return &definitionServiceImpl{
		definitionRepo: definitionRepo,
		logger:         logger,
	}
}

// CreateDefinition validates the step list and stores a new active definition
func (s *definitionServiceImpl) CreateDefinition(ctx context.Context, orgID, createdBy, name, description string, steps []entity.Step) (*entity.WorkflowDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: definition name is required", errs.ErrValidation)
	}
	if err := entity.ValidateSteps(steps); err != nil {
		return nil, err
	}

	now := time.Now()
	def := &entity.WorkflowDefinition{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Steps:          steps,
		IsActive:       true,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.definitionRepo.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create definition", "error", err, "org_id", orgID)
		return nil, err
	}

	s.logger.Info("Definition created", "id", def.ID, "name", name, "steps", len(steps))
	return def, nil
}

// GetDefinition retrieves a definition scoped to an organization
func (s *definitionServiceImpl) GetDefinition(ctx context.Context, id, orgID string) (*entity.WorkflowDefinition, error) {
	def, err := s.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil || def.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: workflow definition %s", errs.ErrNotFound, id)
	}
	return def, nil
}

// ListDefinitions lists an organization's definitions
func (s *definitionServiceImpl) ListDefinitions(ctx context.Context, orgID string) ([]*entity.WorkflowDefinition, error) {
	return s.definitionRepo.List(ctx, orgID)
}

// SetActive toggles whether a definition can start new instances
func (s *definitionServiceImpl) SetActive(ctx context.Context, id, orgID string, active bool) error {
	if err := s.definitionRepo.SetActive(ctx, id, orgID, active); err != nil {
		return err
	}
	s.logger.Info("Definition active flag updated", "id", id, "active", active)
	return nil
}
