package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/notification"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type mockEmail struct{ mock.Mock }

func (m *mockEmail) SendCustom(ctx context.Context, to, subject, content string) error {
	return m.Called(ctx, to, subject, content).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) Send(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}

func outboxEvent(t *testing.T, eventType string, apt *model.Appointment) *model.OutboxEvent {
	t.Helper()
	newData, err := json.Marshal(apt)
	require.NoError(t, err)
	payload, err := json.Marshal(model.EventPayload{Resource: "appointment", Operation: "update", New: newData})
	require.NoError(t, err)
	return &model.OutboxEvent{ID: uuid.New(), EventType: eventType, Payload: payload}
}

func TestHandleStatusChange(t *testing.T) {
	ctx := context.Background()
	mail := &mockEmail{}
	text := &mockSMS{}
	m := metrics.NewMetrics("test", "worker", prometheus.NewRegistry())
	svc := notification.NewService(mail, text, m, nil)

	apt := &model.Appointment{
		FullName: "Ann",
		Phone:    "+15550100",
		Email:    model.StringPtr("ann@x.io"),
		Doctor:   "Dr. Lee",
		Date:     "2024-05-01",
		Time:     "09:30",
		Status:   model.AppointmentStatusConfirmed,
	}

	mail.On("SendCustom", ctx, "ann@x.io", "Your appointment status has changed", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "is now Confirmed")
	})).Return(nil).Once()
	text.On("Send", ctx, "+15550100", mock.AnythingOfType("string")).Return(errors.New("twilio down")).Once()

	err := svc.HandleEvent(ctx, outboxEvent(t, model.EventAppointmentStatusChanged, apt))
	require.NoError(t, err)

	mail.AssertExpectations(t)
	text.AssertExpectations(t)
	assert.Equal(t, 1.0, counterValue(t, m.Notifications.WithLabelValues("email", "sent")))
	assert.Equal(t, 1.0, counterValue(t, m.Notifications.WithLabelValues("sms", "failed")))
}

func TestHandleEmailFailure(t *testing.T) {
	ctx := context.Background()
	mail := &mockEmail{}
	svc := notification.NewService(mail, nil, nil, nil)

	apt := &model.Appointment{FullName: "Ann", Email: model.StringPtr("ann@x.io"), Status: model.AppointmentStatusRescheduled}
	mail.On("SendCustom", ctx, "ann@x.io", "Your appointment has been rescheduled", mock.Anything).Return(errors.New("smtp down"))

	err := svc.HandleEvent(ctx, outboxEvent(t, model.EventAppointmentRescheduled, apt))
	assert.Error(t, err)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	mail := &mockEmail{}
	svc := notification.NewService(mail, nil, nil, nil)

	apt := &model.Appointment{FullName: "Ann", Email: model.StringPtr("ann@x.io")}
	err := svc.HandleEvent(context.Background(), outboxEvent(t, model.EventAppointmentCreated, apt))
	require.NoError(t, err)

	// no patient contact on the row
	err = svc.HandleEvent(context.Background(), outboxEvent(t, model.EventAppointmentStatusChanged, &model.Appointment{FullName: "Bob"}))
	require.NoError(t, err)

	mail.AssertNotCalled(t, "SendCustom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessage(t *testing.T) {
	msg := notification.Message(&model.Appointment{
		FullName:  "Ann",
		Date:      "2024-05-01",
		Time:      "09:30",
		Status:    model.AppointmentStatusCancelled,
		Specialty: "Cardiology",
	})
	assert.Contains(t, msg, "Hello Ann")
	assert.Contains(t, msg, "2024-05-01 at 09:30 is now Cancelled")
	assert.Contains(t, msg, "Department: Cardiology")
	assert.NotContains(t, msg, "Doctor:")
}
