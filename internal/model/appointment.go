package model

import (
	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "Pending"
	AppointmentStatusConfirmed   AppointmentStatus = "Confirmed"
	AppointmentStatusCompleted   AppointmentStatus = "Completed"
	AppointmentStatusCancelled   AppointmentStatus = "Cancelled"
	AppointmentStatusRescheduled AppointmentStatus = "Rescheduled"
)

// AppointmentStatuses is the fixed status vocabulary in display order.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusRescheduled,
}

func (s AppointmentStatus) Valid() bool {
	for _, st := range AppointmentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the expected next states for each status.
// Completed and Cancelled are terminal.
var AllowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending: {
		AppointmentStatusConfirmed,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	},
	AppointmentStatusRescheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
		AppointmentStatusRescheduled,
	},
	AppointmentStatusCompleted: {},
	AppointmentStatusCancelled: {},
}

// CanTransition reports whether from -> to is listed in AllowedTransitions.
// Writing the current status again is always allowed.
func CanTransition(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment is a booked visit. Doctor holds the display name copied when the
// doctor was assigned; it is not updated when the directory entry changes.
type Appointment struct {
	Base
	FullName       string            `db:"full_name" json:"full_name"`
	Phone          string            `db:"phone" json:"phone"`
	Email          *string           `db:"email" json:"email,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	DoctorID       *uuid.UUID        `db:"doctor_id" json:"doctor_id,omitempty"`
	Doctor         string            `db:"doctor" json:"doctor"`
	Specialty      string            `db:"specialty" json:"specialty"`
	Date           string            `db:"date" json:"date"`
	Time           string            `db:"time" json:"time"`
	Diagnosis      *string           `db:"diagnosis" json:"diagnosis,omitempty"`
	TestResults    *string           `db:"test_results" json:"test_results,omitempty"`
	TreatmentNotes *string           `db:"treatment_notes" json:"treatment_notes,omitempty"`
	DoctorNotes    *string           `db:"doctor_notes" json:"doctor_notes,omitempty"`
	TreatmentPlan  *string           `db:"treatment_plan" json:"treatment_plan,omitempty"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Version        int               `db:"version" json:"version"`
}

// Clone returns a copy that shares no pointers with a.
func (a *Appointment) Clone() *Appointment {
	c := *a
	c.Email = clonePtr(a.Email)
	c.Notes = clonePtr(a.Notes)
	c.Diagnosis = clonePtr(a.Diagnosis)
	c.TestResults = clonePtr(a.TestResults)
	c.TreatmentNotes = clonePtr(a.TreatmentNotes)
	c.DoctorNotes = clonePtr(a.DoctorNotes)
	c.TreatmentPlan = clonePtr(a.TreatmentPlan)
	if a.DoctorID != nil {
		id := *a.DoctorID
		c.DoctorID = &id
	}
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type AppointmentOrder string

const (
	OrderCreatedDesc AppointmentOrder = "created_desc"
	OrderTimeAsc     AppointmentOrder = "time_asc"
	OrderDateDesc    AppointmentOrder = "date_desc"
)

// DoctorRef matches appointments owned by a doctor: by id, or by snapshot name
// when the row carries no doctor id.
type DoctorRef struct {
	ID   uuid.UUID
	Name string
}

type AppointmentFilter struct {
	PatientEmail string
	DoctorID     *uuid.UUID
	DoctorName   string
	AssignedTo   *DoctorRef
	Date         string
	DateFrom     string
	DateTo       string
	Status       AppointmentStatus
	Search       string
	OrderBy      AppointmentOrder
}

// NewAppointment is the context independent shape of a creation request.
type NewAppointment struct {
	FullName  string
	Phone     string
	Email     string
	Notes     string
	DoctorID  *uuid.UUID
	Doctor    string
	Specialty string
	Date      string
	Time      string
	Status    AppointmentStatus
}

// AppointmentRequest is implemented by each creation context's request type;
// the validation rules live on the concrete struct tags.
type AppointmentRequest interface {
	NewAppointment() NewAppointment
}

// BookAppointmentRequest is the patient self booking form.
type BookAppointmentRequest struct {
	FullName  string     `json:"full_name" validate:"required,max=200"`
	Phone     string     `json:"phone" validate:"required,max=40"`
	Email     string     `json:"email" validate:"omitempty,email"`
	Specialty string     `json:"specialty" validate:"required,max=100"`
	DoctorID  *uuid.UUID `json:"doctor_id"`
	Doctor    string     `json:"doctor" validate:"required_without=DoctorID,max=200"`
	Date      string     `json:"date" validate:"required,date"`
	Time      string     `json:"time" validate:"required,clock"`
	Notes     string     `json:"notes" validate:"max=2000"`
}

func (r *BookAppointmentRequest) NewAppointment() NewAppointment {
	return NewAppointment{
		FullName:  r.FullName,
		Phone:     r.Phone,
		Email:     r.Email,
		Notes:     r.Notes,
		DoctorID:  r.DoctorID,
		Doctor:    r.Doctor,
		Specialty: r.Specialty,
		Date:      r.Date,
		Time:      r.Time,
		Status:    AppointmentStatusPending,
	}
}

// ReceptionAppointmentRequest is the front desk form; the doctor may be assigned later.
type ReceptionAppointmentRequest struct {
	FullName  string            `json:"full_name" validate:"required,max=200"`
	Phone     string            `json:"phone" validate:"required,max=40"`
	Email     string            `json:"email" validate:"required,email"`
	Specialty string            `json:"specialty" validate:"max=100"`
	DoctorID  *uuid.UUID        `json:"doctor_id"`
	Doctor    string            `json:"doctor" validate:"max=200"`
	Date      string            `json:"date" validate:"required,date"`
	Time      string            `json:"time" validate:"required,clock"`
	Notes     string            `json:"notes" validate:"max=2000"`
	Status    AppointmentStatus `json:"status" validate:"omitempty,oneof=Pending Confirmed Completed Cancelled Rescheduled"`
}

func (r *ReceptionAppointmentRequest) NewAppointment() NewAppointment {
	return NewAppointment{
		FullName:  r.FullName,
		Phone:     r.Phone,
		Email:     r.Email,
		Notes:     r.Notes,
		DoctorID:  r.DoctorID,
		Doctor:    r.Doctor,
		Specialty: r.Specialty,
		Date:      r.Date,
		Time:      r.Time,
		Status:    r.Status,
	}
}

// AdminAppointmentRequest is the administrator form.
type AdminAppointmentRequest struct {
	FullName  string            `json:"full_name" validate:"required,max=200"`
	Phone     string            `json:"phone" validate:"max=40"`
	Email     string            `json:"email" validate:"omitempty,email"`
	Specialty string            `json:"specialty" validate:"max=100"`
	DoctorID  *uuid.UUID        `json:"doctor_id"`
	Doctor    string            `json:"doctor" validate:"required_without=DoctorID,max=200"`
	Date      string            `json:"date" validate:"required,date"`
	Time      string            `json:"time" validate:"required,clock"`
	Notes     string            `json:"notes" validate:"max=2000"`
	Status    AppointmentStatus `json:"status" validate:"omitempty,oneof=Pending Confirmed Completed Cancelled Rescheduled"`
}

func (r *AdminAppointmentRequest) NewAppointment() NewAppointment {
	return NewAppointment{
		FullName:  r.FullName,
		Phone:     r.Phone,
		Email:     r.Email,
		Notes:     r.Notes,
		DoctorID:  r.DoctorID,
		Doctor:    r.Doctor,
		Specialty: r.Specialty,
		Date:      r.Date,
		Time:      r.Time,
		Status:    r.Status,
	}
}

// UpdateAppointmentRequest is a staff edit; nil fields are left unchanged.
type UpdateAppointmentRequest struct {
	FullName  *string            `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone     *string            `json:"phone" validate:"omitempty,max=40"`
	Email     *string            `json:"email" validate:"omitempty,email"`
	Notes     *string            `json:"notes" validate:"omitempty,max=2000"`
	Specialty *string            `json:"specialty" validate:"omitempty,max=100"`
	DoctorID  *uuid.UUID         `json:"doctor_id"`
	Doctor    *string            `json:"doctor" validate:"omitempty,max=200"`
	Date      *string            `json:"date" validate:"omitempty,date"`
	Time      *string            `json:"time" validate:"omitempty,clock"`
	Status    *AppointmentStatus `json:"status" validate:"omitempty,oneof=Pending Confirmed Completed Cancelled Rescheduled"`
	Version   int                `json:"version" validate:"min=0"`
}

// PatientAppointmentUpdate is what a patient may change on their own booking.
type PatientAppointmentUpdate struct {
	Phone   *string `json:"phone" validate:"omitempty,min=1,max=40"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
	Date    *string `json:"date" validate:"omitempty,date"`
	Time    *string `json:"time" validate:"omitempty,clock"`
	Version int     `json:"version" validate:"min=0"`
}

// ClinicalUpdate overwrites the clinical fields of an appointment. Nil fields are kept.
type ClinicalUpdate struct {
	Diagnosis      *string `json:"diagnosis" validate:"omitempty,max=10000"`
	TestResults    *string `json:"test_results" validate:"omitempty,max=10000"`
	TreatmentNotes *string `json:"treatment_notes" validate:"omitempty,max=10000"`
	DoctorNotes    *string `json:"doctor_notes" validate:"omitempty,max=10000"`
	TreatmentPlan  *string `json:"treatment_plan" validate:"omitempty,max=10000"`
	Version        int     `json:"version" validate:"min=0"`
}

type StatusChangeRequest struct {
	Status  AppointmentStatus `json:"status" validate:"required,oneof=Pending Confirmed Completed Cancelled Rescheduled"`
	Version int               `json:"version" validate:"min=0"`
}

type AssignDoctorRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	Version  int       `json:"version" validate:"min=0"`
}

type RescheduleRequest struct {
	Date    string `json:"date" validate:"required,date"`
	Time    string `json:"time" validate:"required,clock"`
	Version int    `json:"version" validate:"min=0"`
}

type VersionRequest struct {
	Version int `json:"version" validate:"min=0"`
}

// StatusTransition describes a status change applied by a mutation.
type StatusTransition struct {
	From    AppointmentStatus `json:"from"`
	To      AppointmentStatus `json:"to"`
	Flagged bool              `json:"flagged_transition"`
}

// AppointmentChange is the outcome of a mutation: the row before and after,
// and the status transition when the status moved.
type AppointmentChange struct {
	Before     *Appointment      `json:"-"`
	After      *Appointment      `json:"appointment"`
	Transition *StatusTransition `json:"transition,omitempty"`
}

// PatientSummary is one distinct patient seen in a doctor's appointments.
type PatientSummary struct {
	FullName  string  `json:"full_name"`
	Phone     string  `json:"phone"`
	Email     *string `json:"email,omitempty"`
	Visits    int     `json:"visits"`
	LastVisit string  `json:"last_visit"`
}
