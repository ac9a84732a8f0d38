package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

type Service struct {
	repo     repository.PatientRepository
	accounts auth.Accounts
	validate *validator.Validator
}

func NewService(repo repository.PatientRepository, accounts auth.Accounts, validate *validator.Validator) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		validate: validate,
	}
}

// Signup creates a patient together with its login.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.Patient, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	return s.create(ctx, &model.Patient{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Age:      req.Age,
		Gender:   req.Gender,
		Phone:    req.Phone,
	}, req.Password)
}

// Create registers a patient on behalf of staff; the login is optional.
func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	return s.create(ctx, &model.Patient{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Age:      req.Age,
		Gender:   req.Gender,
		Phone:    req.Phone,
	}, req.Password)
}

func (s *Service) create(ctx context.Context, patient *model.Patient, password string) (*model.Patient, error) {
	if err := s.repo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("a patient with this email already exists", err)
		}
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	if password != "" {
		if err := s.accounts.Provision(ctx, model.RolePatient, patient.ID, patient.Email, password); err != nil {
			_ = s.repo.Delete(ctx, patient.ID)
			return nil, err
		}
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *patient

	if req.FullName != nil {
		patient.FullName = *req.FullName
	}
	if req.Username != nil {
		patient.Username = *req.Username
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Age != nil {
		patient.Age = req.Age
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("patient", err)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict("a patient with this email already exists", err)
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	// The row holds the unique email, so it is written before the login moves.
	if patient.Email != before.Email {
		if err := s.accounts.ChangeEmail(ctx, model.RolePatient, patient.ID, patient.Email); err != nil {
			if rerr := s.repo.Update(ctx, &before); rerr != nil {
				return nil, fmt.Errorf("failed to restore patient: %w", errors.Join(err, rerr))
			}
			return nil, err
		}
	}
	return patient, nil
}

// Delete removes the patient and its login. Appointments are kept for reporting.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.accounts.Revoke(ctx, model.RolePatient, id); err != nil {
		return fmt.Errorf("failed to revoke patient login: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, search string) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
