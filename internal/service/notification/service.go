package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwalitptl/hospital-api/internal/email"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
	"github.com/jwalitptl/hospital-api/pkg/sms"
)

const (
	channelEmail = "email"
	channelSMS   = "sms"
)

// Service tells patients about changes to their appointments. Either sender
// may be nil, in which case that channel is skipped.
type Service struct {
	emailSvc email.Service
	smsSvc   sms.Sender
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewService(emailSvc email.Service, smsSvc sms.Sender, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		emailSvc: emailSvc,
		smsSvc:   smsSvc,
		metrics:  m,
		log:      log.With("notification"),
	}
}

// HandleEvent sends the notifications an outbox event calls for. Events that
// do not concern a patient are ignored.
func (s *Service) HandleEvent(ctx context.Context, evt *model.OutboxEvent) error {
	var subject string
	switch evt.EventType {
	case model.EventAppointmentStatusChanged:
		subject = "Your appointment status has changed"
	case model.EventAppointmentRescheduled:
		subject = "Your appointment has been rescheduled"
	default:
		return nil
	}

	var payload model.EventPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}
	if len(payload.New) == 0 {
		return nil
	}
	var apt model.Appointment
	if err := json.Unmarshal(payload.New, &apt); err != nil {
		return fmt.Errorf("failed to decode appointment: %w", err)
	}

	body := Message(&apt)

	if to := model.StringValue(apt.Email); to != "" && s.emailSvc != nil {
		err := s.emailSvc.SendCustom(ctx, to, subject, body)
		s.observe(channelEmail, err)
		if err != nil {
			return fmt.Errorf("failed to email patient: %w", err)
		}
	}

	if apt.Phone != "" && s.smsSvc != nil {
		err := s.smsSvc.Send(ctx, apt.Phone, body)
		s.observe(channelSMS, err)
		if err != nil {
			// email already went out; a failed text does not redeliver it
			s.log.Error(err, "Failed to text patient",
				"appointment_id", apt.ID.String(),
				"event_id", evt.ID.String())
		}
	}
	return nil
}

// Message renders the text sent to the patient.
func Message(apt *model.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", apt.FullName)
	fmt.Fprintf(&b, "Your appointment on %s at %s is now %s.", apt.Date, apt.Time, apt.Status)
	if apt.Doctor != "" {
		fmt.Fprintf(&b, "\nDoctor: %s", apt.Doctor)
	}
	if apt.Specialty != "" {
		fmt.Fprintf(&b, "\nDepartment: %s", apt.Specialty)
	}
	return b.String()
}

func (s *Service) observe(channel string, err error) {
	if s.metrics == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	s.metrics.Notifications.WithLabelValues(channel, status).Inc()
}
