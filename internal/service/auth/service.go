package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRoleRequired       = errors.New("email is registered for more than one role")
)

// Accounts manages the login identity behind a role table row.
type Accounts interface {
	Provision(ctx context.Context, role model.Role, subjectID uuid.UUID, email, password string) error
	ChangeEmail(ctx context.Context, role model.Role, subjectID uuid.UUID, email string) error
	Revoke(ctx context.Context, role model.Role, subjectID uuid.UUID) error
}

type Service struct {
	identities repository.IdentityRepository
	doctors    repository.DoctorRepository
	patients   repository.PatientRepository
	staff      repository.StaffRepository
	hasher     security.PasswordHasher
	jwtSvc     auth.JWTService
	validate   *validator.Validator
}

func NewService(
	identities repository.IdentityRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	staff repository.StaffRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	validate *validator.Validator,
) *Service {
	return &Service{
		identities: identities,
		doctors:    doctors,
		patients:   patients,
		staff:      staff,
		hasher:     hasher,
		jwtSvc:     jwtSvc,
		validate:   validate,
	}
}

// Login resolves the identity for an email. The role is only needed when the
// same email is registered for several roles.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	candidates, err := s.identities.ListByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if req.Role != "" {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Role == req.Role {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	switch len(candidates) {
	case 0:
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	case 1:
	default:
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrBadRequest,
			Message: ErrRoleRequired.Error(),
			Fields:  map[string]string{"role": "is required"},
			Err:     ErrRoleRequired,
		}
	}

	identity := candidates[0]
	if err := s.hasher.Compare(identity.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	name, err := s.displayName(ctx, identity.Role, identity.SubjectID)
	if err != nil {
		return nil, err
	}

	principal := model.Principal{
		SubjectID: identity.SubjectID,
		Role:      identity.Role,
		Email:     identity.Email,
		Name:      name,
	}
	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(principal.SubjectID, string(principal.Role), principal.Email, principal.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Principal:   principal,
	}, nil
}

// Profile returns the role table row of the caller.
func (s *Service) Profile(ctx context.Context, p *model.Principal) (interface{}, error) {
	var (
		profile interface{}
		err     error
	)
	switch p.Role {
	case model.RoleDoctor:
		profile, err = s.doctors.Get(ctx, p.SubjectID)
	case model.RolePatient:
		profile, err = s.patients.Get(ctx, p.SubjectID)
	case model.RoleAdmin, model.RoleReceptionist:
		profile, err = s.staff.Get(ctx, p.Role, p.SubjectID)
	default:
		return nil, apperrors.Forbidden("unknown role")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(string(p.Role), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

func (s *Service) displayName(ctx context.Context, role model.Role, id uuid.UUID) (string, error) {
	switch role {
	case model.RoleDoctor:
		d, err := s.doctors.Get(ctx, id)
		if err != nil {
			return "", s.accountError(err)
		}
		return d.FullName, nil
	case model.RolePatient:
		p, err := s.patients.Get(ctx, id)
		if err != nil {
			return "", s.accountError(err)
		}
		return p.FullName, nil
	default:
		st, err := s.staff.Get(ctx, role, id)
		if err != nil {
			return "", s.accountError(err)
		}
		return st.FullName, nil
	}
}

// an identity whose role row is gone cannot log in
func (s *Service) accountError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Unauthorized(ErrInvalidCredentials)
	}
	return fmt.Errorf("failed to load account: %w", err)
}

func (s *Service) Provision(ctx context.Context, role model.Role, subjectID uuid.UUID, email, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return apperrors.Validation(map[string]string{
				"password": fmt.Sprintf("must be at least %d characters", security.MinPasswordLen),
			}, err)
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &model.Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		SubjectID:    subjectID,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("a %s account already exists for %s", role, email), err)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

func (s *Service) ChangeEmail(ctx context.Context, role model.Role, subjectID uuid.UUID, email string) error {
	if err := s.identities.UpdateEmail(ctx, role, subjectID, email); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("a %s account already exists for %s", role, email), err)
		}
		return err
	}
	return nil
}

func (s *Service) Revoke(ctx context.Context, role model.Role, subjectID uuid.UUID) error {
	return s.identities.DeleteBySubject(ctx, role, subjectID)
}

// CreateStaff registers an administrator or receptionist with a login.
func (s *Service) CreateStaff(ctx context.Context, req *model.CreateStaffRequest) (*model.Staff, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	staff := &model.Staff{FullName: req.FullName, Email: req.Email}
	if err := s.staff.Create(ctx, req.Role, staff); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", req.Role, err)
	}
	if err := s.Provision(ctx, req.Role, staff.ID, req.Email, req.Password); err != nil {
		return nil, err
	}
	return staff, nil
}
