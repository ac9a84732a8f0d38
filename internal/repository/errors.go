package repository

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record was modified by another request")
	ErrDuplicate = errors.New("record already exists")
)
