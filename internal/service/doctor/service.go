package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

const publicListingKey = "doctors:public"

type Service struct {
	repo     repository.DoctorRepository
	accounts auth.Accounts
	validate *validator.Validator
	cache    *cache.Cache
}

// NewService caches the public listing for ttl; every directory write clears it.
func NewService(repo repository.DoctorRepository, accounts auth.Accounts, validate *validator.Validator, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		validate: validate,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	doctor := &model.Doctor{
		FullName:     req.FullName,
		Specialty:    req.Specialty,
		Email:        req.Email,
		Experience:   req.Experience,
		Availability: req.Availability,
		Times:        req.Times,
		Bio:          req.Bio,
		Photo:        req.Photo,
		Rating:       req.Rating,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("a doctor with this email already exists", err)
		}
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}

	if req.Password != "" {
		if err := s.accounts.Provision(ctx, model.RoleDoctor, doctor.ID, doctor.Email, req.Password); err != nil {
			// keep the directory and logins consistent
			_ = s.repo.Delete(ctx, doctor.ID)
			return nil, err
		}
	}

	s.invalidate()
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor, nil
}

// Update edits a directory entry. Appointments keep the doctor name they were booked with.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *doctor

	if req.FullName != nil {
		doctor.FullName = *req.FullName
	}
	if req.Specialty != nil {
		doctor.Specialty = *req.Specialty
	}
	if req.Email != nil {
		doctor.Email = *req.Email
	}
	if req.Experience != nil {
		doctor.Experience = req.Experience
	}
	if req.Availability != nil {
		doctor.Availability = req.Availability
	}
	if req.Times != nil {
		doctor.Times = *req.Times
	}
	if req.Bio != nil {
		doctor.Bio = *req.Bio
	}
	if req.Photo != nil {
		doctor.Photo = *req.Photo
	}
	if req.Rating != nil {
		doctor.Rating = req.Rating
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("doctor", err)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict("a doctor with this email already exists", err)
		}
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}
	s.invalidate()

	if doctor.Email != before.Email {
		if err := s.accounts.ChangeEmail(ctx, model.RoleDoctor, doctor.ID, doctor.Email); err != nil {
			if rerr := s.repo.Update(ctx, &before); rerr != nil {
				return nil, fmt.Errorf("failed to restore doctor: %w", errors.Join(err, rerr))
			}
			return nil, err
		}
	}
	return doctor, nil
}

// Delete removes the entry and its login. Appointments referencing the doctor are left as they are.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.accounts.Revoke(ctx, model.RoleDoctor, id); err != nil {
		return fmt.Errorf("failed to revoke doctor login: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	s.invalidate()
	return nil
}

func (s *Service) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

// PublicListing returns every doctor with listing defaults applied.
func (s *Service) PublicListing(ctx context.Context) ([]model.PublicDoctor, error) {
	if cached, ok := s.cache.Get(publicListingKey); ok {
		return cached.([]model.PublicDoctor), nil
	}

	doctors, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	listing := make([]model.PublicDoctor, 0, len(doctors))
	for _, d := range doctors {
		listing = append(listing, d.Public())
	}

	s.cache.SetDefault(publicListingKey, listing)
	return listing, nil
}

// Resolve finds the doctor a booking refers to. An explicit id must exist; a
// name resolves only when exactly one directory entry carries it.
func (s *Service) Resolve(ctx context.Context, id *uuid.UUID, name string) (*model.Doctor, error) {
	if id != nil {
		return s.Get(ctx, *id)
	}
	if name == "" {
		return nil, nil
	}
	matches, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve doctor: %w", err)
	}
	if len(matches) != 1 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *Service) invalidate() {
	s.cache.Delete(publicListingKey)
}
