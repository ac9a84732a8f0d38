package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Appointment event types written by the API.
const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// EventActor identifies who triggered a change.
type EventActor struct {
	ID   string `json:"id,omitempty"`
	Role string `json:"role,omitempty"`
}

// EventPayload is the JSON document stored in OutboxEvent.Payload.
type EventPayload struct {
	Resource   string                 `json:"resource"`
	Operation  string                 `json:"operation"`
	Old        json.RawMessage        `json:"old,omitempty"`
	New        json.RawMessage        `json:"new,omitempty"`
	Additional map[string]interface{} `json:"additional,omitempty"`
	Actor      *EventActor            `json:"actor,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
