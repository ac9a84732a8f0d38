package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	pkgauth "github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

func newService(t *testing.T) (*auth.Service, *memory.Store, pkgauth.JWTService) {
	t.Helper()
	store := memory.NewStore()
	jwtSvc := pkgauth.NewJWTService("test-secret", "test", time.Hour)
	svc := auth.NewService(
		store.Identities(), store.Doctors(), store.Patients(), store.Staff(),
		security.NewBcryptHasher(4), jwtSvc, validator.New(),
	)
	return svc, store, jwtSvc
}

func appErrorOf(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, store, jwtSvc := newService(t)

	admin, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
		Role: model.RoleAdmin, FullName: "Ada Admin", Email: "shared@example.com", Password: "admin123!",
	})
	require.NoError(t, err)

	doctor := &model.Doctor{FullName: "Dr. Shared", Email: "shared@example.com"}
	require.NoError(t, store.Doctors().Create(ctx, doctor))
	require.NoError(t, svc.Provision(ctx, model.RoleDoctor, doctor.ID, doctor.Email, "doctor123!"))

	t.Run("ambiguous email needs a role", func(t *testing.T) {
		_, err := svc.Login(ctx, &model.LoginRequest{Email: "shared@example.com", Password: "admin123!"})
		appErr := appErrorOf(t, err)
		assert.Equal(t, 400, appErr.StatusCode())
		assert.Equal(t, "is required", appErr.Fields["role"])
	})

	t.Run("role picks the account", func(t *testing.T) {
		resp, err := svc.Login(ctx, &model.LoginRequest{Email: "SHARED@example.com", Password: "doctor123!", Role: model.RoleDoctor})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, doctor.ID, resp.Principal.SubjectID)
		assert.Equal(t, "Dr. Shared", resp.Principal.Name)

		claims, err := jwtSvc.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, string(model.RoleDoctor), claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, &model.LoginRequest{Email: "shared@example.com", Password: "doctor123!", Role: model.RoleAdmin})
		assert.Equal(t, 401, appErrorOf(t, err).StatusCode())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, &model.LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
		assert.Equal(t, 401, appErrorOf(t, err).StatusCode())
	})

	t.Run("revoked login", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, model.RoleAdmin, admin.ID))
		_, err := svc.Login(ctx, &model.LoginRequest{Email: "shared@example.com", Password: "admin123!", Role: model.RoleAdmin})
		assert.Equal(t, 401, appErrorOf(t, err).StatusCode())
	})
}

func TestProvision(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
		Role: model.RoleReceptionist, FullName: "Rae", Email: "desk@example.com", Password: "desk1234",
	})
	require.NoError(t, err)

	t.Run("duplicate email for the same role", func(t *testing.T) {
		_, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
			Role: model.RoleReceptionist, FullName: "Ray", Email: "desk@example.com", Password: "desk1234",
		})
		assert.Equal(t, 409, appErrorOf(t, err).StatusCode())
	})

	t.Run("short password", func(t *testing.T) {
		err := svc.Provision(ctx, model.RolePatient, uuid.New(), "p@example.com", "short")
		appErr := appErrorOf(t, err)
		assert.Equal(t, 400, appErr.StatusCode())
		assert.Contains(t, appErr.Fields, "password")
	})

	t.Run("staff role is validated", func(t *testing.T) {
		_, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
			Role: model.RoleDoctor, FullName: "Nope", Email: "nope@example.com", Password: "nope12345",
		})
		assert.Contains(t, appErrorOf(t, err).Fields, "role")
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	staff, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{
		Role: model.RoleAdmin, FullName: "Ada", Email: "ada@example.com", Password: "admin123!",
	})
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, &model.Principal{SubjectID: staff.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.(*model.Staff).FullName)

	_, err = svc.Profile(ctx, &model.Principal{SubjectID: staff.ID, Role: model.RoleDoctor})
	assert.Equal(t, 404, appErrorOf(t, err).StatusCode())
}
