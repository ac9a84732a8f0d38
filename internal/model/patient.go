package model

type Patient struct {
	Base
	FullName string `db:"full_name" json:"full_name"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	Age      *int   `db:"age" json:"age,omitempty"`
	Gender   string `db:"gender" json:"gender"`
	Phone    string `db:"phone" json:"phone"`
}

// SignupRequest registers a patient account.
type SignupRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Username string `json:"username" validate:"required,max=60"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Age      *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
	Phone    string `json:"phone" validate:"max=40"`
}

// CreatePatientRequest is used by staff; the password is optional so that
// walk-in patients can be registered without an account.
type CreatePatientRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Username string `json:"username" validate:"max=60"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
	Age      *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
	Phone    string `json:"phone" validate:"max=40"`
}

type UpdatePatientRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Username *string `json:"username" validate:"omitempty,max=60"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Age      *int    `json:"age" validate:"omitempty,min=0,max=150"`
	Gender   *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Phone    *string `json:"phone" validate:"omitempty,max=40"`
}
