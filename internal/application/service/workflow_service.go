package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/application/dispatcher"
	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/errs"
	"github.com/docuflow/docuflow/internal/domain/event"
	domainwf "github.com/docuflow/docuflow/internal/domain/workflow"
)

// WorkflowService drives workflow instances through their lifecycle:
// starting them against a document, resolving approval gates, accepting
// action-completion signals, and reading instance state. Every transition
// that touches more than one entity runs inside one transaction; partial
// application is never observable.
type WorkflowService interface {
	StartWorkflow(ctx context.Context, definitionID, orgID, documentID, actorID, data string) (*entity.WorkflowInstance, error)

	// ResolveGate applies an approve/reject decision to a pending gate.
	// The engine re-validates the resolver identity against the gate's
	// designated approver before mutating anything.
	ResolveGate(ctx context.Context, gateID, resolverID string, decision entity.Decision, comments string) error

	// SignalAction completes the current action step of an instance. It
	// carries the same approve/reject semantics as a gate resolution and
	// funnels into the same advance logic.
	SignalAction(ctx context.Context, instanceID, actorID string, outcome entity.Decision, comments string) error

	GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error)
	ListInstances(ctx context.Context, orgID string, limit, offset int) ([]*entity.WorkflowInstance, error)
}

// DocumentMutator is the slice of DocumentService the workflow engine needs:
// reading a document for context and stamping outcomes through the sanctioned
// optimistic write path.
type DocumentMutator interface {
	GetDocument(ctx context.Context, id, orgID string) (*entity.Document, error)
	Mutate(ctx context.Context, id, orgID, userID string, expectedVersion int64, change DocumentChange) (*entity.Document, error)
}

type workflowServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	gateRepo       port.GateRepository
	documents      DocumentMutator
	resolver       port.AssigneeResolver
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	logger         Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	gateRepo port.GateRepository,
	documents DocumentMutator,
	resolver port.AssigneeResolver,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		gateRepo:       gateRepo,
		documents:      documents,
		resolver:       resolver,
		txManager:      txManager,
		dispatcher:     d,
		logger:         logger,
	}
}

// StartWorkflow creates an instance at step 0 and, if step 0 requires
// approval, its first pending gate. Instance and gate are created
// all-or-nothing.
func (s *workflowServiceImpl) StartWorkflow(ctx context.Context, definitionID, orgID, documentID, actorID, data string) (*entity.WorkflowInstance, error) {
	var instance *entity.WorkflowInstance
	var events []*event.Event
	now := time.Now()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		def, err := s.definitionRepo.GetActive(txCtx, definitionID, orgID)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("%w: workflow definition %s missing or inactive", errs.ErrNotFound, definitionID)
		}
		if len(def.Steps) == 0 {
			return fmt.Errorf("%w: definition %s has no steps", errs.ErrValidation, definitionID)
		}

		doc, err := s.documents.GetDocument(txCtx, documentID, orgID)
		if err != nil {
			return err
		}

		step := def.Steps[0]
		assigneeID, err := s.resolver.Resolve(txCtx, orgID, step.AssigneeRule, data)
		if err != nil {
			return fmt.Errorf("resolve step 0 assignee: %w", err)
		}

		machine := domainwf.NewInstanceMachine(domainwf.StatePending)
		if err := machine.Fire(txCtx, domainwf.TriggerStart); err != nil {
			return err
		}

		instance = &entity.WorkflowInstance{
			ID:                   uuid.NewString(),
			WorkflowDefinitionID: def.ID,
			DocumentID:           doc.ID,
			Status:               machine.State().String(),
			CurrentStepIndex:     0,
			AssignedTo:           assigneeID,
			Data:                 data,
			StartedAt:            now,
			CreatedAt:            now,
		}
		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		if step.Kind == entity.StepKindApproval {
			gate := &entity.ApprovalGate{
				ID:                 uuid.NewString(),
				DocumentID:         doc.ID,
				WorkflowInstanceID: instance.ID,
				ApproverID:         assigneeID,
				Status:             entity.GateStatusPending,
				CreatedAt:          now,
			}
			if err := s.gateRepo.Create(txCtx, gate); err != nil {
				return fmt.Errorf("create gate: %w", err)
			}
		}

		events = append(events, event.NewEvent(
			event.TypeWorkflowStarted, orgID, actorID, "workflow_instance", instance.ID,
			map[string]interface{}{
				"definition_id": def.ID,
				"document_id":   doc.ID,
				"assigned_to":   assigneeID,
			},
		))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to start workflow", "error", err, "definition_id", definitionID, "document_id", documentID)
		return nil, wrapTxErr(err)
	}

	s.publish(ctx, events)
	s.logger.Info("Workflow started",
		"instance_id", instance.ID,
		"definition_id", definitionID,
		"document_id", documentID,
		"assigned_to", instance.AssignedTo)
	return instance, nil
}

// ResolveGate resolves a pending gate and recomputes the instance position
func (s *workflowServiceImpl) ResolveGate(ctx context.Context, gateID, resolverID string, decision entity.Decision, comments string) error {
	if !decision.IsValid() {
		return fmt.Errorf("%w: unknown decision %q", errs.ErrValidation, decision)
	}

	var events []*event.Event
	now := time.Now()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		gate, err := s.gateRepo.GetByID(txCtx, gateID)
		if err != nil {
			return err
		}
		if gate == nil {
			return fmt.Errorf("%w: approval gate %s", errs.ErrNotFound, gateID)
		}
		if gate.ApproverID != resolverID {
			return fmt.Errorf("%w: %s is not the designated approver for gate %s", errs.ErrUnauthorized, resolverID, gateID)
		}
		if gate.Status != entity.GateStatusPending {
			return fmt.Errorf("%w: gate %s already %s", errs.ErrConflict, gateID, gate.Status)
		}

		instance, err := s.instanceRepo.GetByID(txCtx, gate.WorkflowInstanceID)
		if err != nil {
			return err
		}
		if instance == nil {
			return fmt.Errorf("%w: workflow instance %s", errs.ErrNotFound, gate.WorkflowInstanceID)
		}
		state := domainwf.State(instance.Status)
		if state.IsTerminal() {
			return fmt.Errorf("%w: instance %s already %s", errs.ErrConflict, instance.ID, instance.Status)
		}

		def, err := s.definitionRepo.GetByID(txCtx, instance.WorkflowDefinitionID)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("%w: workflow definition %s", errs.ErrNotFound, instance.WorkflowDefinitionID)
		}

		gateStatus := entity.GateStatusApproved
		if decision == entity.DecisionReject {
			gateStatus = entity.GateStatusRejected
		}

		// Compare-and-set on (id, approver, pending). Under two concurrent
		// resolutions exactly one statement matches; the loser rolls back
		// here with a conflict.
		if err := s.gateRepo.Resolve(txCtx, gate.ID, resolverID, gateStatus, comments, now); err != nil {
			return err
		}

		events = append(events, event.NewEvent(
			event.TypeGateResolved, def.OrganizationID, resolverID, "approval_gate", gate.ID,
			map[string]interface{}{
				"decision":    string(decision),
				"instance_id": instance.ID,
			},
		))

		machine := domainwf.NewInstanceMachine(state)

		if decision == entity.DecisionReject {
			moreEvents, err := s.reject(txCtx, machine, def, instance, resolverID, now)
			events = append(events, moreEvents...)
			return err
		}

		moreEvents, err := s.approveAdvance(txCtx, machine, def, instance, resolverID, now)
		events = append(events, moreEvents...)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to resolve gate", "error", err, "gate_id", gateID, "resolver_id", resolverID)
		return wrapTxErr(err)
	}

	s.publish(ctx, events)
	s.logger.Info("Gate resolved", "gate_id", gateID, "decision", string(decision), "resolver_id", resolverID)
	return nil
}

// SignalAction completes the current action step with approve/reject semantics
func (s *workflowServiceImpl) SignalAction(ctx context.Context, instanceID, actorID string, outcome entity.Decision, comments string) error {
	if !outcome.IsValid() {
		return fmt.Errorf("%w: unknown outcome %q", errs.ErrValidation, outcome)
	}

	var events []*event.Event
	now := time.Now()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		instance, err := s.instanceRepo.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if instance == nil {
			return fmt.Errorf("%w: workflow instance %s", errs.ErrNotFound, instanceID)
		}
		state := domainwf.State(instance.Status)
		if state.IsTerminal() {
			return fmt.Errorf("%w: instance %s already %s", errs.ErrConflict, instance.ID, instance.Status)
		}
		if instance.AssignedTo != actorID {
			return fmt.Errorf("%w: %s is not assigned to instance %s", errs.ErrUnauthorized, actorID, instanceID)
		}

		def, err := s.definitionRepo.GetByID(txCtx, instance.WorkflowDefinitionID)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("%w: workflow definition %s", errs.ErrNotFound, instance.WorkflowDefinitionID)
		}

		step, err := def.StepAt(instance.CurrentStepIndex)
		if err != nil {
			return err
		}
		if step.Kind != entity.StepKindAction {
			return fmt.Errorf("%w: current step of instance %s is not an action step", errs.ErrConflict, instanceID)
		}

		machine := domainwf.NewInstanceMachine(state)

		if outcome == entity.DecisionReject {
			moreEvents, err := s.reject(txCtx, machine, def, instance, actorID, now)
			events = append(events, moreEvents...)
			return err
		}

		moreEvents, err := s.approveAdvance(txCtx, machine, def, instance, actorID, now)
		events = append(events, moreEvents...)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to signal action", "error", err, "instance_id", instanceID, "actor_id", actorID)
		return wrapTxErr(err)
	}

	s.publish(ctx, events)
	s.logger.Info("Action signaled", "instance_id", instanceID, "outcome", string(outcome), "actor_id", actorID)
	return nil
}

// GetInstance retrieves an instance by ID
func (s *workflowServiceImpl) GetInstance(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: workflow instance %s", errs.ErrNotFound, id)
	}
	return instance, nil
}

// ListInstances lists instances for an organization
func (s *workflowServiceImpl) ListInstances(ctx context.Context, orgID string, limit, offset int) ([]*entity.WorkflowInstance, error) {
	return s.instanceRepo.ListByOrganization(ctx, orgID, limit, offset)
}

// reject terminates the instance and stamps the rejection into the document
func (s *workflowServiceImpl) reject(ctx context.Context, machine domainwf.StateMachine, def *entity.WorkflowDefinition, instance *entity.WorkflowInstance, actorID string, now time.Time) ([]*event.Event, error) {
	if err := machine.Fire(ctx, domainwf.TriggerReject); err != nil {
		return nil, err
	}
	if err := s.instanceRepo.MarkRejected(ctx, instance.ID); err != nil {
		return nil, err
	}
	if err := s.stampOutcome(ctx, def, instance, actorID, entity.DocumentStatusRejected, now); err != nil {
		return nil, err
	}

	return []*event.Event{event.NewEvent(
		event.TypeInstanceRejected, def.OrganizationID, actorID, "workflow_instance", instance.ID,
		map[string]interface{}{"step_index": instance.CurrentStepIndex},
	)}, nil
}

// approveAdvance moves the cursor to the next step, completing the instance
// when the step list is exhausted. Advancement is strictly index + 1.
func (s *workflowServiceImpl) approveAdvance(ctx context.Context, machine domainwf.StateMachine, def *entity.WorkflowDefinition, instance *entity.WorkflowInstance, actorID string, now time.Time) ([]*event.Event, error) {
	nextIndex := instance.CurrentStepIndex + 1

	if nextIndex >= len(def.Steps) {
		if err := machine.Fire(ctx, domainwf.TriggerComplete); err != nil {
			return nil, err
		}
		if err := s.instanceRepo.MarkCompleted(ctx, instance.ID, now); err != nil {
			return nil, err
		}
		if err := s.stampOutcome(ctx, def, instance, actorID, entity.DocumentStatusApproved, now); err != nil {
			return nil, err
		}

		return []*event.Event{event.NewEvent(
			event.TypeInstanceCompleted, def.OrganizationID, actorID, "workflow_instance", instance.ID,
			map[string]interface{}{"steps": len(def.Steps)},
		)}, nil
	}

	step, err := def.StepAt(nextIndex)
	if err != nil {
		return nil, err
	}

	if err := machine.Fire(ctx, domainwf.TriggerAdvance); err != nil {
		return nil, err
	}

	assigneeID, err := s.resolver.Resolve(ctx, def.OrganizationID, step.AssigneeRule, instance.Data)
	if err != nil {
		return nil, fmt.Errorf("resolve step %d assignee: %w", nextIndex, err)
	}
	if err := s.instanceRepo.Advance(ctx, instance.ID, nextIndex, assigneeID); err != nil {
		return nil, err
	}

	if step.Kind == entity.StepKindApproval {
		gate := &entity.ApprovalGate{
			ID:                 uuid.NewString(),
			DocumentID:         instance.DocumentID,
			WorkflowInstanceID: instance.ID,
			ApproverID:         assigneeID,
			Status:             entity.GateStatusPending,
			CreatedAt:          now,
		}
		if err := s.gateRepo.Create(ctx, gate); err != nil {
			return nil, fmt.Errorf("create gate: %w", err)
		}
	}

	return []*event.Event{event.NewEvent(
		event.TypeInstanceAdvanced, def.OrganizationID, actorID, "workflow_instance", instance.ID,
		map[string]interface{}{
			"step_index":  nextIndex,
			"assigned_to": assigneeID,
			"step_kind":   string(step.Kind),
		},
	)}, nil
}

// stampOutcome writes the workflow outcome into the document through the
// sanctioned optimistic mutation path, inside the transition's transaction.
// A version or lock conflict here rolls back the whole transition.
func (s *workflowServiceImpl) stampOutcome(ctx context.Context, def *entity.WorkflowDefinition, instance *entity.WorkflowInstance, actorID, outcome string, now time.Time) error {
	doc, err := s.documents.GetDocument(ctx, instance.DocumentID, def.OrganizationID)
	if err != nil {
		return err
	}

	metadata := mergeMetadata(doc.Metadata, map[string]interface{}{
		"workflow_instance_id": instance.ID,
		"workflow_outcome":     outcome,
		"workflow_resolved_at": now.UTC().Format(time.RFC3339),
	})

	_, err = s.documents.Mutate(ctx, doc.ID, def.OrganizationID, actorID, doc.Version, DocumentChange{
		Metadata: &metadata,
		Status:   &outcome,
	})
	return err
}

// publish dispatches collected events after a successful commit
func (s *workflowServiceImpl) publish(ctx context.Context, events []*event.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, evt := range events {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}
