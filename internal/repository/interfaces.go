package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository is the record access layer for appointments.
	// Update with expectedVersion 0 is unconditional; otherwise the stored
	// version must match or ErrConflict is returned.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment, expectedVersion int) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error)
		CountByDate(ctx context.Context, from, to string) (map[string]int, error)
		CountByStatus(ctx context.Context) (map[model.AppointmentStatus]int, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, error)
		FindByName(ctx context.Context, name string) ([]*model.Doctor, error)
		Count(ctx context.Context) (int, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, search string) ([]*model.Patient, error)
		Count(ctx context.Context) (int, error)
	}

	// StaffRepository stores admins and receptionists in their role tables.
	StaffRepository interface {
		Create(ctx context.Context, role model.Role, staff *model.Staff) error
		Get(ctx context.Context, role model.Role, id uuid.UUID) (*model.Staff, error)
	}

	IdentityRepository interface {
		Create(ctx context.Context, identity *model.Identity) error
		ListByEmail(ctx context.Context, email string) ([]*model.Identity, error)
		UpdateEmail(ctx context.Context, role model.Role, subjectID uuid.UUID, email string) error
		DeleteBySubject(ctx context.Context, role model.Role, subjectID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit pending events as processing and returns them.
		ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed returns the event to pending until maxRetries is reached.
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error
		CountPending(ctx context.Context) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
