package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

var ErrInvalidTransition = errors.New("status transition not allowed")

// TransitionPolicy decides what happens to a status change outside model.AllowedTransitions.
type TransitionPolicy string

const (
	// PolicyPermissive applies the change and flags it.
	PolicyPermissive TransitionPolicy = "permissive"
	// PolicyStrict rejects the change.
	PolicyStrict TransitionPolicy = "strict"
)

// DoctorResolver looks up the directory entry a booking refers to.
type DoctorResolver interface {
	Resolve(ctx context.Context, id *uuid.UUID, name string) (*model.Doctor, error)
}

type Service struct {
	repo     repository.AppointmentRepository
	doctors  DoctorResolver
	validate *validator.Validator
	policy   TransitionPolicy
	log      *logger.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	doctors DoctorResolver,
	validate *validator.Validator,
	policy TransitionPolicy,
	log *logger.Logger,
) *Service {
	if policy == "" {
		policy = PolicyPermissive
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		doctors:  doctors,
		validate: validate,
		policy:   policy,
		log:      log.With("appointment"),
	}
}

// Create validates req against the rules of its creation context and stores
// a new appointment. actor may be nil.
func (s *Service) Create(ctx context.Context, actor *model.Principal, req model.AppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	in := req.NewAppointment()
	if actor != nil && actor.Role == model.RolePatient {
		if err := accountEmail(actor, in.Email); err != nil {
			return nil, err
		}
		in.Email = actor.Email
	}
	if in.Status == "" {
		in.Status = model.AppointmentStatusPending
	}

	apt := &model.Appointment{
		FullName:  strings.TrimSpace(in.FullName),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     model.StringPtr(strings.TrimSpace(in.Email)),
		Notes:     model.StringPtr(in.Notes),
		Doctor:    strings.TrimSpace(in.Doctor),
		Specialty: strings.TrimSpace(in.Specialty),
		Date:      in.Date,
		Time:      in.Time,
		Status:    in.Status,
	}

	doctor, err := s.resolveDoctor(ctx, in.DoctorID, apt.Doctor)
	if err != nil {
		return nil, err
	}
	if doctor != nil {
		assign(apt, doctor)
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return apt, nil
}

// GetFor returns the appointment if actor may see it.
func (s *Service) GetFor(ctx context.Context, actor *model.Principal, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// ListForPatient returns the caller's bookings, newest first.
func (s *Service) ListForPatient(ctx context.Context, actor *model.Principal) ([]*model.Appointment, error) {
	return s.List(ctx, &model.AppointmentFilter{PatientEmail: actor.Email, OrderBy: model.OrderCreatedDesc})
}

// HistoryForPatient returns the caller's visits, most recent date first.
func (s *Service) HistoryForPatient(ctx context.Context, actor *model.Principal) ([]*model.Appointment, error) {
	return s.List(ctx, &model.AppointmentFilter{PatientEmail: actor.Email, OrderBy: model.OrderDateDesc})
}

// ListForDoctor narrows filter to the appointments assigned to the calling doctor.
func (s *Service) ListForDoctor(ctx context.Context, actor *model.Principal, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}
	name, err := s.currentName(ctx, actor)
	if err != nil {
		return nil, err
	}
	filter.AssignedTo = &model.DoctorRef{ID: actor.SubjectID, Name: name}
	if filter.OrderBy == "" {
		filter.OrderBy = model.OrderDateDesc
	}
	return s.List(ctx, filter)
}

// PatientsForDoctor lists the distinct patients seen in the doctor's appointments.
func (s *Service) PatientsForDoctor(ctx context.Context, actor *model.Principal) ([]*model.PatientSummary, error) {
	appointments, err := s.ListForDoctor(ctx, actor, nil)
	if err != nil {
		return nil, err
	}

	byKey := map[string]*model.PatientSummary{}
	for _, a := range appointments {
		key := strings.ToLower(model.StringValue(a.Email))
		if key == "" {
			key = strings.ToLower(a.FullName) + "|" + a.Phone
		}
		ps, ok := byKey[key]
		if !ok {
			ps = &model.PatientSummary{FullName: a.FullName, Phone: a.Phone, Email: a.Email}
			byKey[key] = ps
		}
		ps.Visits++
		if a.Date > ps.LastVisit {
			ps.LastVisit = a.Date
		}
	}

	out := make([]*model.PatientSummary, 0, len(byKey))
	for _, ps := range byKey {
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].Phone < out[j].Phone
	})
	return out, nil
}

// Update applies a staff edit.
func (s *Service) Update(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.AppointmentChange, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		if req.FullName != nil {
			apt.FullName = strings.TrimSpace(*req.FullName)
		}
		if req.Phone != nil {
			apt.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			apt.Email = model.StringPtr(strings.TrimSpace(*req.Email))
		}
		if req.Notes != nil {
			apt.Notes = model.StringPtr(*req.Notes)
		}
		if req.Specialty != nil {
			apt.Specialty = strings.TrimSpace(*req.Specialty)
		}
		if req.Date != nil {
			apt.Date = *req.Date
		}
		if req.Time != nil {
			apt.Time = *req.Time
		}
		if req.Status != nil {
			apt.Status = *req.Status
		}

		switch {
		case req.DoctorID != nil:
			doctor, err := s.resolveDoctor(ctx, req.DoctorID, "")
			if err != nil {
				return err
			}
			assign(apt, doctor)
		case req.Doctor != nil:
			apt.Doctor = strings.TrimSpace(*req.Doctor)
			apt.DoctorID = nil
			doctor, err := s.resolveDoctor(ctx, nil, apt.Doctor)
			if err != nil {
				return err
			}
			if doctor != nil {
				assign(apt, doctor)
			}
		}
		return nil
	})
}

// AssignDoctor copies the doctor's current name onto the appointment. Later
// renames in the directory do not reach the appointment.
func (s *Service) AssignDoctor(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.AssignDoctorRequest) (*model.AppointmentChange, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	doctor, err := s.resolveDoctor(ctx, &req.DoctorID, "")
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		assign(apt, doctor)
		return nil
	})
}

func (s *Service) ChangeStatus(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.StatusChangeRequest) (*model.AppointmentChange, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		apt.Status = req.Status
		return nil
	})
}

// Reschedule moves the appointment and marks it Rescheduled.
func (s *Service) Reschedule(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.RescheduleRequest) (*model.AppointmentChange, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		apt.Date = req.Date
		apt.Time = req.Time
		apt.Status = model.AppointmentStatusRescheduled
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, actor *model.Principal, id uuid.UUID, version int) (*model.AppointmentChange, error) {
	return s.mutate(ctx, actor, id, version, func(apt *model.Appointment) error {
		apt.Status = model.AppointmentStatusCancelled
		return nil
	})
}

// UpdateOwn applies a patient's edit to their own booking. Moving the date or
// time marks the booking Rescheduled. The contact email stays the account email.
func (s *Service) UpdateOwn(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.PatientAppointmentUpdate) (*model.AppointmentChange, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Email != nil && actor != nil {
		if err := accountEmail(actor, *req.Email); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		if req.Phone != nil {
			apt.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			apt.Email = model.StringPtr(strings.TrimSpace(*req.Email))
		}
		if req.Notes != nil {
			apt.Notes = model.StringPtr(*req.Notes)
		}

		moved := false
		if req.Date != nil && *req.Date != apt.Date {
			apt.Date = *req.Date
			moved = true
		}
		if req.Time != nil && *req.Time != apt.Time {
			apt.Time = *req.Time
			moved = true
		}
		if moved {
			apt.Status = model.AppointmentStatusRescheduled
		}
		return nil
	})
}

// UpdateClinical overwrites the clinical fields. Only the assigned doctor may do this.
func (s *Service) UpdateClinical(ctx context.Context, actor *model.Principal, id uuid.UUID, req *model.ClinicalUpdate) (*model.AppointmentChange, error) {
	if err := clinicalAccess(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, req.Version, func(apt *model.Appointment) error {
		if req.Diagnosis != nil {
			apt.Diagnosis = model.StringPtr(*req.Diagnosis)
		}
		if req.TestResults != nil {
			apt.TestResults = model.StringPtr(*req.TestResults)
		}
		if req.TreatmentNotes != nil {
			apt.TreatmentNotes = model.StringPtr(*req.TreatmentNotes)
		}
		if req.DoctorNotes != nil {
			apt.DoctorNotes = model.StringPtr(*req.DoctorNotes)
		}
		if req.TreatmentPlan != nil {
			apt.TreatmentPlan = model.StringPtr(*req.TreatmentPlan)
		}
		return nil
	})
}

// ClearPrescription empties the prescription fields written by the doctor.
func (s *Service) ClearPrescription(ctx context.Context, actor *model.Principal, id uuid.UUID, version int) (*model.AppointmentChange, error) {
	if err := clinicalAccess(actor); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, id, version, func(apt *model.Appointment) error {
		apt.DoctorNotes = nil
		apt.TestResults = nil
		apt.TreatmentPlan = nil
		return nil
	})
}

// Delete removes the appointment and returns what was deleted. Deleting an
// unknown id succeeds and returns nil.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) mutate(ctx context.Context, actor *model.Principal, id uuid.UUID, version int, apply func(*model.Appointment) error) (*model.AppointmentChange, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if err := s.authorize(ctx, actor, apt); err != nil {
		return nil, err
	}
	if version != 0 && apt.Version != version {
		return nil, apperrors.Conflict(
			fmt.Sprintf("appointment is at version %d, not %d", apt.Version, version),
			repository.ErrConflict,
		)
	}

	before := apt.Clone()
	if err := apply(apt); err != nil {
		return nil, err
	}

	change := &model.AppointmentChange{Before: before, After: apt}
	if before.Status != apt.Status {
		t := &model.StatusTransition{
			From:    before.Status,
			To:      apt.Status,
			Flagged: !model.CanTransition(before.Status, apt.Status),
		}
		if t.Flagged {
			if s.policy == PolicyStrict {
				return nil, apperrors.Unprocessable(
					fmt.Sprintf("cannot change status from %s to %s", t.From, t.To),
					ErrInvalidTransition,
				)
			}
			s.log.Warn("Appointment status changed outside the expected flow",
				"appointment_id", id.String(),
				"from", string(t.From),
				"to", string(t.To))
		}
		change.Transition = t
	}

	if err := s.repo.Update(ctx, apt, version); err != nil {
		return nil, storeError(err)
	}
	return change, nil
}

func (s *Service) resolveDoctor(ctx context.Context, id *uuid.UUID, name string) (*model.Doctor, error) {
	doctor, err := s.doctors.Resolve(ctx, id, name)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
			return nil, apperrors.Validation(map[string]string{"doctor_id": "does not match a doctor"}, err)
		}
		return nil, err
	}
	return doctor, nil
}

// assign snapshots the doctor onto the appointment.
func assign(apt *model.Appointment, doctor *model.Doctor) {
	id := doctor.ID
	apt.DoctorID = &id
	apt.Doctor = doctor.FullName
	if apt.Specialty == "" {
		apt.Specialty = doctor.Specialty
	}
}

func (s *Service) authorize(ctx context.Context, actor *model.Principal, apt *model.Appointment) error {
	if actor == nil {
		return nil
	}
	switch actor.Role {
	case model.RoleAdmin, model.RoleReceptionist:
		return nil
	case model.RoleDoctor:
		owned, err := s.ownedBy(ctx, apt, actor)
		if err != nil {
			return err
		}
		if owned {
			return nil
		}
		return apperrors.Forbidden("appointment is not assigned to you")
	case model.RolePatient:
		if apt.Email != nil && strings.EqualFold(*apt.Email, actor.Email) {
			return nil
		}
		return apperrors.Forbidden("appointment does not belong to you")
	}
	return apperrors.Forbidden("role may not access appointments")
}

// ownedBy matches assigned rows by id and unassigned rows by the doctor's
// current directory name.
func (s *Service) ownedBy(ctx context.Context, apt *model.Appointment, doctor *model.Principal) (bool, error) {
	if apt.DoctorID != nil {
		return *apt.DoctorID == doctor.SubjectID, nil
	}
	if apt.Doctor == "" {
		return false, nil
	}
	name, err := s.currentName(ctx, doctor)
	if err != nil {
		return false, err
	}
	return apt.Doctor == name, nil
}

// currentName returns the directory name of the calling doctor. The name in
// the token is used when the doctor has no directory entry.
func (s *Service) currentName(ctx context.Context, doctor *model.Principal) (string, error) {
	d, err := s.doctors.Resolve(ctx, &doctor.SubjectID, "")
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrNotFound {
			return doctor.Name, nil
		}
		return "", fmt.Errorf("failed to resolve doctor: %w", err)
	}
	if d == nil {
		return doctor.Name, nil
	}
	return d.FullName, nil
}

// accountEmail rejects a patient booking contact that is not the account email.
func accountEmail(actor *model.Principal, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || strings.EqualFold(email, actor.Email) {
		return nil
	}
	return apperrors.Validation(map[string]string{"email": "must be your account email"}, nil)
}

func clinicalAccess(actor *model.Principal) error {
	if actor == nil {
		return nil
	}
	if actor.Role == model.RoleDoctor {
		return nil
	}
	return apperrors.Forbidden("only doctors may edit clinical records")
}

func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("appointment", err)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict("appointment was modified by another request", err)
	}
	return err
}
