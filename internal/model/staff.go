package model

// Staff is an administrator or receptionist account holder.
type Staff struct {
	Base
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

type CreateStaffRequest struct {
	Role     Role   `json:"role" validate:"required,oneof=admin receptionist"`
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}
