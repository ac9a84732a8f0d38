package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/worker"
)

type mockBroker struct {
	messaging.NopBroker
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

type mockHandler struct{ mock.Mock }

func (m *mockHandler) HandleEvent(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newProcessor(store *memory.Store, broker messaging.Broker, handler worker.EventHandler) *worker.OutboxProcessor {
	return worker.NewOutboxProcessor(
		store.Outbox(),
		broker,
		handler,
		worker.OutboxProcessorConfig{
			BatchSize:     10,
			PollInterval:  time.Second,
			RetryAttempts: 2,
			RetryDelay:    time.Millisecond,
			MaxRetries:    2,
			Channel:       "appointments",
		},
		logger.Nop(),
		metrics.NewMetrics("test", "outbox", prometheus.NewRegistry()),
	)
}

func addEvent(t *testing.T, store *memory.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	evt := &model.OutboxEvent{EventType: eventType, Payload: json.RawMessage(`{"resource":"appointment"}`)}
	require.NoError(t, store.Outbox().Create(context.Background(), evt))
	return evt
}

func TestProcessEventsPublishesAndHandles(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	evt := addEvent(t, store, model.EventAppointmentStatusChanged)

	broker := &mockBroker{}
	broker.On("Publish", ctx, "appointments", mock.MatchedBy(func(msg messaging.Message) bool {
		return msg.ID == evt.ID.String() && msg.Type == model.EventAppointmentStatusChanged
	})).Return(nil).Once()

	handler := &mockHandler{}
	handler.On("HandleEvent", ctx, mock.MatchedBy(func(e *model.OutboxEvent) bool { return e.ID == evt.ID })).Return(nil).Once()

	require.NoError(t, newProcessor(store, broker, handler).ProcessEvents(ctx))

	broker.AssertExpectations(t)
	handler.AssertExpectations(t)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestProcessEventsRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	addEvent(t, store, model.EventAppointmentCreated)

	broker := &mockBroker{}
	broker.On("Publish", ctx, "appointments", mock.Anything).Return(errors.New("connection refused"))

	p := newProcessor(store, broker, nil)

	require.NoError(t, p.ProcessEvents(ctx))
	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)

	require.NoError(t, p.ProcessEvents(ctx))
	events = store.Events()
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "connection refused")

	// two publish attempts per pass
	broker.AssertNumberOfCalls(t, "Publish", 4)

	// failed events are not claimed again
	require.NoError(t, p.ProcessEvents(ctx))
	broker.AssertNumberOfCalls(t, "Publish", 4)
}

func TestProcessEventsHandlerFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	addEvent(t, store, model.EventAppointmentRescheduled)

	broker := &mockBroker{}
	broker.On("Publish", ctx, "appointments", mock.Anything).Return(nil)
	handler := &mockHandler{}
	handler.On("HandleEvent", ctx, mock.Anything).Return(errors.New("smtp down"))

	require.NoError(t, newProcessor(store, broker, handler).ProcessEvents(ctx))

	events := store.Events()
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.Equal(t, "smtp down", *events[0].ErrorMessage)
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	assert.Panics(t, func() {
		worker.NewOutboxProcessor(memory.NewStore().Outbox(), messaging.NopBroker{}, nil,
			worker.OutboxProcessorConfig{}, logger.Nop(), nil)
	})
}
