package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/model"
)

const contextKey = "eventCtx"

// ActorFunc extracts the caller from the request, if any.
type ActorFunc func(c *gin.Context) *model.EventActor

type EventTrackerMiddleware struct {
	eventService EventService
	actor        ActorFunc
}

func NewEventTrackerMiddleware(eventSvc EventService, actor ActorFunc) *EventTrackerMiddleware {
	return &EventTrackerMiddleware{
		eventService: eventSvc,
		actor:        actor,
	}
}

// FromContext returns the event context set by TrackEvent, or nil.
func FromContext(c *gin.Context) *EventContext {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	ctx, _ := v.(*EventContext)
	return ctx
}

func eventType(resource, operation string) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(resource), strings.ToUpper(operation))
}

// TrackEvent records an outbox event after a successful request whose handler
// filled in OldData or NewData.
func (m *EventTrackerMiddleware) TrackEvent(resource, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventCtx := &EventContext{
			Resource:  resource,
			Operation: operation,
		}
		c.Set(contextKey, eventCtx)

		c.Next()

		if c.Writer.Status() >= 400 || (eventCtx.NewData == nil && eventCtx.OldData == nil) {
			return
		}

		payload := &model.EventPayload{
			Resource:   eventCtx.Resource,
			Operation:  eventCtx.Operation,
			Additional: eventCtx.Additional,
			OccurredAt: time.Now().UTC(),
		}
		if m.actor != nil {
			payload.Actor = m.actor(c)
		}

		var err error
		if payload.Old, err = marshal(eventCtx.OldData); err != nil {
			log.Error().Err(err).Str("event_type", eventCtx.Type()).Msg("Failed to marshal event payload")
			return
		}
		if payload.New, err = marshal(eventCtx.NewData); err != nil {
			log.Error().Err(err).Str("event_type", eventCtx.Type()).Msg("Failed to marshal event payload")
			return
		}

		// the change is already stored; a lost event is logged, not surfaced
		if err := m.eventService.Record(c.Request.Context(), eventCtx.Type(), payload); err != nil {
			log.Error().Err(err).Str("event_type", eventCtx.Type()).Msg("Failed to create event")
		}
	}
}

func marshal(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
