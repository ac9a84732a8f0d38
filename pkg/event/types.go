package event

import (
	"context"

	"github.com/jwalitptl/hospital-api/internal/model"
)

// EventContext is attached to the gin context by TrackEvent; handlers fill it
// in once the change has been stored.
type EventContext struct {
	Resource  string
	Operation string
	// EventType overrides the RESOURCE_OPERATION default.
	EventType  string
	OldData    interface{}
	NewData    interface{}
	Additional map[string]interface{}
}

func (e *EventContext) Type() string {
	if e.EventType != "" {
		return e.EventType
	}
	return eventType(e.Resource, e.Operation)
}

// EventService persists change events to the outbox.
type EventService interface {
	Record(ctx context.Context, eventType string, payload *model.EventPayload) error
}
