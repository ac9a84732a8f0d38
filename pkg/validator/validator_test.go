package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

type booking struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	DoctorID string `json:"doctor_id" validate:"required_without=Doctor"`
	Doctor   string `json:"doctor"`
	Date     string `json:"date" validate:"required,date"`
	Time     string `json:"time" validate:"required,clock"`
	Status   string `json:"status" validate:"omitempty,oneof=Pending Confirmed"`
}

func TestStruct(t *testing.T) {
	v := New()

	valid := booking{FullName: "Jane", Doctor: "Dr. Grey", Date: "2030-03-10", Time: "09:30"}
	assert.NoError(t, v.Struct(valid))

	tests := []struct {
		name    string
		mutate  func(b *booking)
		field   string
		message string
	}{
		{"missing name", func(b *booking) { b.FullName = "" }, "full_name", "is required"},
		{"bad email", func(b *booking) { b.Email = "nope" }, "email", "must be a valid email"},
		{"no doctor", func(b *booking) { b.Doctor = "" }, "doctor_id", "is required when doctor is empty"},
		{"slash date", func(b *booking) { b.Date = "10/03/2030" }, "date", "must be a date in YYYY-MM-DD format"},
		{"impossible date", func(b *booking) { b.Date = "2030-02-30" }, "date", "must be a date in YYYY-MM-DD format"},
		{"seconds in time", func(b *booking) { b.Time = "09:30:00" }, "time", "must be a time in HH:MM format"},
		{"hour out of range", func(b *booking) { b.Time = "25:00" }, "time", "must be a time in HH:MM format"},
		{"unknown status", func(b *booking) { b.Status = "Lost" }, "status", "must be one of: Pending Confirmed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)

			err := v.Struct(b)
			require.Error(t, err)

			var fields FieldErrors
			require.True(t, errors.As(err, &fields))
			assert.Equal(t, tt.message, fields[tt.field])
		})
	}
}

func TestValidateWrapsAsAppError(t *testing.T) {
	err := New().Validate(booking{})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.StatusCode())
	assert.Equal(t, "validation failed", appErr.Message)
	assert.Contains(t, appErr.Fields, "full_name")
	assert.Contains(t, appErr.Fields, "date")
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "doctor_id", toSnake("DoctorID"))
	assert.Equal(t, "full_name", toSnake("FullName"))
	assert.Equal(t, "email", toSnake("Email"))
}
