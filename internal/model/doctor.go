package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Defaults applied by the public doctor listing when a directory entry leaves a field empty.
const (
	DefaultDoctorSpecialty  = "General"
	DefaultDoctorExperience = 5
	DefaultDoctorTimes      = "09:00 - 17:00"
	DefaultDoctorBio        = "Experienced doctor."
	DefaultDoctorPhoto      = "https://randomuser.me/api/portraits/lego/1.jpg"
)

var DefaultDoctorAvailability = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

type Doctor struct {
	Base
	FullName     string         `db:"full_name" json:"full_name"`
	Specialty    string         `db:"specialty" json:"specialty"`
	Email        string         `db:"email" json:"email"`
	Experience   *int           `db:"experience" json:"experience,omitempty"`
	Availability pq.StringArray `db:"availability" json:"availability"`
	Times        string         `db:"times" json:"times"`
	Bio          string         `db:"bio" json:"bio"`
	Photo        string         `db:"photo" json:"photo"`
	Rating       *float64       `db:"rating" json:"rating,omitempty"`
}

// PublicDoctor is the shape served to anonymous visitors.
type PublicDoctor struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Specialty    string    `json:"specialty"`
	Experience   int       `json:"experience"`
	Availability []string  `json:"availability"`
	Times        string    `json:"times"`
	Bio          string    `json:"bio"`
	Rating       *float64  `json:"rating"`
	Photo        string    `json:"photo"`
}

// Public converts a directory entry, filling empty fields with the listing defaults.
func (d *Doctor) Public() PublicDoctor {
	p := PublicDoctor{
		ID:           d.ID,
		Name:         d.FullName,
		Specialty:    d.Specialty,
		Experience:   DefaultDoctorExperience,
		Availability: []string(d.Availability),
		Times:        d.Times,
		Bio:          d.Bio,
		Rating:       d.Rating,
		Photo:        d.Photo,
	}
	if p.Specialty == "" {
		p.Specialty = DefaultDoctorSpecialty
	}
	if d.Experience != nil {
		p.Experience = *d.Experience
	}
	if len(p.Availability) == 0 {
		p.Availability = append([]string(nil), DefaultDoctorAvailability...)
	}
	if p.Times == "" {
		p.Times = DefaultDoctorTimes
	}
	if p.Bio == "" {
		p.Bio = DefaultDoctorBio
	}
	if p.Photo == "" {
		p.Photo = DefaultDoctorPhoto
	}
	return p
}

type DoctorFilter struct {
	Specialty string
	Search    string
}

type CreateDoctorRequest struct {
	FullName     string   `json:"full_name" validate:"required,max=200"`
	Specialty    string   `json:"specialty" validate:"max=100"`
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"omitempty,min=8"`
	Experience   *int     `json:"experience" validate:"omitempty,min=0,max=80"`
	Availability []string `json:"availability" validate:"omitempty,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Times        string   `json:"times" validate:"max=100"`
	Bio          string   `json:"bio" validate:"max=4000"`
	Photo        string   `json:"photo" validate:"omitempty,url"`
	Rating       *float64 `json:"rating" validate:"omitempty,min=0,max=5"`
}

type UpdateDoctorRequest struct {
	FullName     *string  `json:"full_name" validate:"omitempty,min=1,max=200"`
	Specialty    *string  `json:"specialty" validate:"omitempty,max=100"`
	Email        *string  `json:"email" validate:"omitempty,email"`
	Experience   *int     `json:"experience" validate:"omitempty,min=0,max=80"`
	Availability []string `json:"availability" validate:"omitempty,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Times        *string  `json:"times" validate:"omitempty,max=100"`
	Bio          *string  `json:"bio" validate:"omitempty,max=4000"`
	Photo        *string  `json:"photo" validate:"omitempty,url"`
	Rating       *float64 `json:"rating" validate:"omitempty,min=0,max=5"`
}
