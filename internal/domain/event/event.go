package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event emitted after a successful transition
type Event struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	OrganizationID string                 `json:"organization_id"`
	ActorID        string                 `json:"actor_id"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Payload        map[string]interface{} `json:"payload"`
	Timestamp      time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, orgID, actorID, resourceType, resourceID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrganizationID: orgID,
		ActorID:        actorID,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Payload:        payload,
		Timestamp:      time.Now(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
