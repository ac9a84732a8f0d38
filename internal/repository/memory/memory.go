// Package memory keeps every record in process memory. It mirrors the postgres
// repositories closely enough to run the API without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

// Store holds all tables behind one lock.
type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	last         time.Time
	appointments map[uuid.UUID]*model.Appointment
	doctors      map[uuid.UUID]*model.Doctor
	patients     map[uuid.UUID]*model.Patient
	staff        map[model.Role]map[uuid.UUID]*model.Staff
	identities   map[uuid.UUID]*model.Identity
	outbox       map[uuid.UUID]*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		appointments: map[uuid.UUID]*model.Appointment{},
		doctors:      map[uuid.UUID]*model.Doctor{},
		patients:     map[uuid.UUID]*model.Patient{},
		staff: map[model.Role]map[uuid.UUID]*model.Staff{
			model.RoleAdmin:        {},
			model.RoleReceptionist: {},
		},
		identities: map[uuid.UUID]*model.Identity{},
		outbox:     map[uuid.UUID]*model.OutboxEvent{},
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// tick returns a timestamp strictly after the previous one so that
// created_at ordering is total. Callers hold the write lock.
func (s *Store) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepository{s} }
func (s *Store) Doctors() repository.DoctorRepository           { return &doctorRepository{s} }
func (s *Store) Patients() repository.PatientRepository         { return &patientRepository{s} }
func (s *Store) Staff() repository.StaffRepository              { return &staffRepository{s} }
func (s *Store) Identities() repository.IdentityRepository      { return &identityRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return &outboxRepository{s} }

type appointmentRepository struct{ s *Store }

func (r *appointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.tick()
	appointment.ID = uuid.New()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	appointment.Version = 1
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusPending
	}
	r.s.appointments[appointment.ID] = appointment.Clone()
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *appointmentRepository) Update(_ context.Context, appointment *model.Appointment, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.appointments[appointment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return repository.ErrConflict
	}

	stored := appointment.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.Version = current.Version + 1
	stored.UpdatedAt = r.s.tick()
	r.s.appointments[stored.ID] = stored

	appointment.Version = stored.Version
	appointment.UpdatedAt = stored.UpdatedAt
	appointment.CreatedAt = stored.CreatedAt
	return nil
}

func (r *appointmentRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepository) List(_ context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}

	r.s.mu.RLock()
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if matchAppointment(a, filter) {
			out = append(out, a.Clone())
		}
	}
	r.s.mu.RUnlock()

	switch filter.OrderBy {
	case model.OrderTimeAsc:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Time != out[j].Time {
				return out[i].Time < out[j].Time
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	case model.OrderDateDesc:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Date != out[j].Date {
				return out[i].Date > out[j].Date
			}
			return out[i].Time > out[j].Time
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}
	return out, nil
}

func matchAppointment(a *model.Appointment, f *model.AppointmentFilter) bool {
	if f.PatientEmail != "" && !strings.EqualFold(model.StringValue(a.Email), f.PatientEmail) {
		return false
	}
	if f.DoctorID != nil && (a.DoctorID == nil || *a.DoctorID != *f.DoctorID) {
		return false
	}
	if f.DoctorName != "" && a.Doctor != f.DoctorName {
		return false
	}
	if f.AssignedTo != nil {
		byID := a.DoctorID != nil && *a.DoctorID == f.AssignedTo.ID
		byName := a.DoctorID == nil && a.Doctor == f.AssignedTo.Name
		if !byID && !byName {
			return false
		}
	}
	if f.Date != "" && a.Date != f.Date {
		return false
	}
	if f.DateFrom != "" && a.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && a.Date > f.DateTo {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hay := strings.ToLower(a.FullName + "\x00" + a.Phone + "\x00" + model.StringValue(a.Email))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (r *appointmentRepository) CountByDate(_ context.Context, from, to string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[string]int{}
	for _, a := range r.s.appointments {
		if a.Date >= from && a.Date <= to {
			counts[a.Date]++
		}
	}
	return counts, nil
}

func (r *appointmentRepository) CountByStatus(_ context.Context) (map[model.AppointmentStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[model.AppointmentStatus]int{}
	for _, a := range r.s.appointments {
		counts[a.Status]++
	}
	return counts, nil
}

type doctorRepository struct{ s *Store }

func cloneDoctor(d *model.Doctor) *model.Doctor {
	c := *d
	c.Availability = append(c.Availability[:0:0], d.Availability...)
	return &c
}

func (r *doctorRepository) Create(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.doctors {
		if strings.EqualFold(d.Email, doctor.Email) {
			return repository.ErrDuplicate
		}
	}
	now := r.s.tick()
	doctor.ID = uuid.New()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now
	r.s.doctors[doctor.ID] = cloneDoctor(doctor)
	return nil
}

func (r *doctorRepository) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDoctor(d), nil
}

func (r *doctorRepository) Update(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.doctors[doctor.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, d := range r.s.doctors {
		if id != doctor.ID && strings.EqualFold(d.Email, doctor.Email) {
			return repository.ErrDuplicate
		}
	}
	doctor.CreatedAt = current.CreatedAt
	doctor.UpdatedAt = r.s.tick()
	r.s.doctors[doctor.ID] = cloneDoctor(doctor)
	return nil
}

func (r *doctorRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.doctors, id)
	return nil
}

func (r *doctorRepository) List(_ context.Context, filter *model.DoctorFilter) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		if filter != nil {
			if filter.Specialty != "" && !strings.EqualFold(d.Specialty, filter.Specialty) {
				continue
			}
			if filter.Search != "" {
				q := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(d.FullName), q) && !strings.Contains(strings.ToLower(d.Specialty), q) {
					continue
				}
			}
		}
		out = append(out, cloneDoctor(d))
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *doctorRepository) FindByName(_ context.Context, name string) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	name = strings.TrimSpace(name)
	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		if strings.EqualFold(d.FullName, name) {
			out = append(out, cloneDoctor(d))
		}
	}
	return out, nil
}

func (r *doctorRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.doctors), nil
}

type patientRepository struct{ s *Store }

func clonePatient(p *model.Patient) *model.Patient {
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	return &c
}

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.patients {
		if strings.EqualFold(p.Email, patient.Email) {
			return repository.ErrDuplicate
		}
	}
	now := r.s.tick()
	patient.ID = uuid.New()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	r.s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePatient(p), nil
}

func (r *patientRepository) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if strings.EqualFold(p.Email, email) {
			return clonePatient(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *patientRepository) Update(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.patients[patient.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, p := range r.s.patients {
		if id != patient.ID && strings.EqualFold(p.Email, patient.Email) {
			return repository.ErrDuplicate
		}
	}
	patient.CreatedAt = current.CreatedAt
	patient.UpdatedAt = r.s.tick()
	r.s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (r *patientRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.patients, id)
	return nil
}

func (r *patientRepository) List(_ context.Context, search string) ([]*model.Patient, error) {
	r.s.mu.RLock()
	q := strings.ToLower(search)
	out := []*model.Patient{}
	for _, p := range r.s.patients {
		hay := strings.ToLower(p.FullName + "\x00" + p.Email + "\x00" + p.Phone)
		if q == "" || strings.Contains(hay, q) {
			out = append(out, clonePatient(p))
		}
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *patientRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.patients), nil
}

type staffRepository struct{ s *Store }

func (r *staffRepository) Create(_ context.Context, role model.Role, staff *model.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	table, ok := r.s.staff[role]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.s.tick()
	staff.ID = uuid.New()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	c := *staff
	table[staff.ID] = &c
	return nil
}

func (r *staffRepository) Get(_ context.Context, role model.Role, id uuid.UUID) (*model.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.staff[role][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *st
	return &c, nil
}

type identityRepository struct{ s *Store }

func (r *identityRepository) Create(_ context.Context, identity *model.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, i := range r.s.identities {
		if i.Role == identity.Role && strings.EqualFold(i.Email, identity.Email) {
			return repository.ErrDuplicate
		}
	}
	identity.ID = uuid.New()
	identity.CreatedAt = r.s.tick()
	c := *identity
	r.s.identities[identity.ID] = &c
	return nil
}

func (r *identityRepository) ListByEmail(_ context.Context, email string) ([]*model.Identity, error) {
	r.s.mu.RLock()
	out := []*model.Identity{}
	for _, i := range r.s.identities {
		if strings.EqualFold(i.Email, email) {
			c := *i
			out = append(out, &c)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (r *identityRepository) UpdateEmail(_ context.Context, role model.Role, subjectID uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, i := range r.s.identities {
		if i.Role == role && i.SubjectID != subjectID && strings.EqualFold(i.Email, email) {
			return repository.ErrDuplicate
		}
	}
	for _, i := range r.s.identities {
		if i.Role == role && i.SubjectID == subjectID {
			i.Email = email
		}
	}
	return nil
}

func (r *identityRepository) DeleteBySubject(_ context.Context, role model.Role, subjectID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, i := range r.s.identities {
		if i.Role == role && i.SubjectID == subjectID {
			delete(r.s.identities, id)
		}
	}
	return nil
}

type outboxRepository struct{ s *Store }

func cloneEvent(e *model.OutboxEvent) *model.OutboxEvent {
	c := *e
	c.Payload = append(c.Payload[:0:0], e.Payload...)
	return &c
}

func (r *outboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.tick()
	event.ID = uuid.New()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.Status = model.OutboxStatusPending
	r.s.outbox[event.ID] = cloneEvent(event)
	return nil
}

func (r *outboxRepository) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	pending := []*model.OutboxEvent{}
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	now := r.s.tick()
	out := make([]*model.OutboxEvent, 0, len(pending))
	for _, e := range pending {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := r.s.tick()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
	e.ErrorMessage = nil
	return nil
}

func (r *outboxRepository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, maxRetries int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.RetryCount++
	e.ErrorMessage = &errMsg
	e.UpdatedAt = r.s.tick()
	if e.RetryCount >= maxRetries {
		e.Status = model.OutboxStatusFailed
	} else {
		e.Status = model.OutboxStatusPending
	}
	return nil
}

func (r *outboxRepository) CountPending(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending {
			n++
		}
	}
	return n, nil
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of every outbox row, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
