// Package audit records actions against resources after successful
// transitions. Recording is best-effort: failures are logged and swallowed,
// never propagated into the call that triggered them.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/application/dispatcher"
	"github.com/docuflow/docuflow/internal/application/port"
	"github.com/docuflow/docuflow/internal/domain/entity"
	"github.com/docuflow/docuflow/internal/domain/event"
)

// Recorder implements port.AuditRecorder on top of the audit repository
type Recorder struct {
	repo   port.AuditRepository
	logger *zap.Logger
}

// NewRecorder creates a new audit recorder
func NewRecorder(repo port.AuditRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Record writes an audit entry, logging and swallowing any failure. The
// write uses a fresh context so a caller whose request already finished
// cannot cancel it.
func (r *Recorder) Record(_ context.Context, entry *entity.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("Failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("resource_type", entry.ResourceType),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err))
	}
}

// Subscribe registers the recorder on the dispatcher for every domain event
// type, turning each into an audit entry.
func (r *Recorder) Subscribe(d dispatcher.Dispatcher) {
	types := []event.Type{
		event.TypeWorkflowStarted,
		event.TypeGateResolved,
		event.TypeInstanceAdvanced,
		event.TypeInstanceCompleted,
		event.TypeInstanceRejected,
		event.TypeDocumentMutated,
		event.TypeDocumentLocked,
		event.TypeDocumentUnlocked,
	}
	for _, t := range types {
		d.SubscribeNamed(t, "audit-recorder", r.handleEvent)
	}
}

func (r *Recorder) handleEvent(ctx context.Context, evt *event.Event) error {
	details := ""
	if len(evt.Payload) > 0 {
		if data, err := json.Marshal(evt.Payload); err == nil {
			details = string(data)
		}
	}

	r.Record(ctx, &entity.AuditEntry{
		OrganizationID: evt.OrganizationID,
		UserID:         evt.ActorID,
		Action:         actionFor(evt),
		ResourceType:   evt.ResourceType,
		ResourceID:     evt.ResourceID,
		Details:        details,
		CreatedAt:      evt.Timestamp,
	})
	return nil
}

// actionFor maps an event to its audit action verb
func actionFor(evt *event.Event) string {
	switch evt.Type {
	case event.TypeWorkflowStarted:
		return "START"
	case event.TypeGateResolved:
		if strings.EqualFold(evt.GetPayloadString("decision"), string(entity.DecisionReject)) {
			return "REJECT"
		}
		return "APPROVE"
	case event.TypeInstanceAdvanced:
		return "ADVANCE"
	case event.TypeInstanceCompleted:
		return "COMPLETE"
	case event.TypeInstanceRejected:
		return "REJECT"
	case event.TypeDocumentMutated:
		return "UPDATE"
	case event.TypeDocumentLocked:
		return "LOCK"
	case event.TypeDocumentUnlocked:
		return "UNLOCK"
	default:
		return strings.ToUpper(evt.Type.String())
	}
}

// Verify interface compliance
var _ port.AuditRecorder = (*Recorder)(nil)
