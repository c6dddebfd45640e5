package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a lifecycle event on the rental-events topic
type Type string

const (
	ApplicationSubmitted   Type = "application.submitted"
	ApplicationWithdrawn   Type = "application.withdrawn"
	ApplicationDecided     Type = "application.decided"
	LeaseCreated           Type = "lease.created"
	LeaseStatusChanged     Type = "lease.status_changed"
	LeaseAgreementAttached Type = "lease.agreement_attached"
	PaymentRecorded        Type = "payment.recorded"
	PaymentStatusChanged   Type = "payment.status_changed"
)

// Event is the envelope written to Kafka. Payload holds the entity snapshot after the change.
type Event struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	PropertyID     string          `json:"property_id"`
	EntityID       string          `json:"entity_id"`
	ActorID        string          `json:"actor_id"`
	Status         string          `json:"status,omitempty"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// New builds an event, marshalling the payload. A payload that cannot be encoded is left empty.
func New(eventType Type, propertyID, entityID, actorID string, payload interface{}) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		PropertyID: propertyID,
		EntityID:   entityID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

// WithStatus records the status change carried by the event
func (e Event) WithStatus(previous, current string) Event {
	e.PreviousStatus = previous
	e.Status = current
	return e
}

// Publisher accepts events for asynchronous delivery. Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
