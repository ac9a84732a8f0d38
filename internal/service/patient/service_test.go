package patient_test

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
	"github.com/jwalitptl/hospital-api/internal/service/patient"
	pkgauth "github.com/jwalitptl/hospital-api/pkg/auth"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/security"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

func newService(t *testing.T) (*patient.Service, *auth.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	v := validator.New()
	authSvc := auth.NewService(
		store.Identities(), store.Doctors(), store.Patients(), store.Staff(),
		security.NewBcryptHasher(4),
		pkgauth.NewJWTService("test-secret", "test", time.Hour),
		v,
	)
	return patient.NewService(store.Patients(), authSvc, v), authSvc, store
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.StatusCode()
}

func signup(t *testing.T, svc *patient.Service, name, email string) *model.Patient {
	t.Helper()
	p, err := svc.Signup(context.Background(), &model.SignupRequest{
		FullName: name,
		Username: name,
		Email:    email,
		Password: "patient123",
	})
	require.NoError(t, err)
	return p
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	svc, authSvc, store := newService(t)

	t.Run("creates the patient and its login", func(t *testing.T) {
		p := signup(t, svc, "alice", "alice@example.com")

		resp, err := authSvc.Login(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "patient123"})
		require.NoError(t, err)
		assert.Equal(t, p.ID, resp.Principal.SubjectID)
		assert.Equal(t, model.RolePatient, resp.Principal.Role)
	})

	t.Run("short password is a field error", func(t *testing.T) {
		_, err := svc.Signup(ctx, &model.SignupRequest{FullName: "Shorty", Username: "shorty", Email: "short@example.com", Password: "abc"})
		require.Error(t, err)
		assert.Equal(t, 400, statusOf(t, err))
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		_, err := svc.Signup(ctx, &model.SignupRequest{FullName: "Alice Again", Username: "alice2", Email: "ALICE@example.com", Password: "patient123"})
		require.Error(t, err)
		assert.Equal(t, 409, statusOf(t, err))
	})

	t.Run("rejected login leaves no patient row", func(t *testing.T) {
		require.NoError(t, authSvc.Provision(ctx, model.RolePatient, uuid.New(), "orphan@example.com", "patient123"))
		before, err := store.Patients().Count(ctx)
		require.NoError(t, err)

		_, err = svc.Signup(ctx, &model.SignupRequest{FullName: "Orphan", Username: "orphan", Email: "orphan@example.com", Password: "patient123"})
		require.Error(t, err)
		assert.Equal(t, 409, statusOf(t, err))

		after, err := store.Patients().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestCreateWithoutPassword(t *testing.T) {
	ctx := context.Background()
	svc, authSvc, _ := newService(t)

	p, err := svc.Create(ctx, &model.CreatePatientRequest{FullName: "Walk In", Email: "walkin@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)

	_, err = authSvc.Login(ctx, &model.LoginRequest{Email: "walkin@example.com", Password: "patient123"})
	assert.Error(t, err)
}

func TestUpdateEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("login follows the new email", func(t *testing.T) {
		svc, authSvc, _ := newService(t)
		p := signup(t, svc, "alice", "alice@example.com")

		email := "alice.new@example.com"
		updated, err := svc.Update(ctx, p.ID, &model.UpdatePatientRequest{Email: &email})
		require.NoError(t, err)
		assert.Equal(t, email, updated.Email)

		_, err = authSvc.Login(ctx, &model.LoginRequest{Email: email, Password: "patient123"})
		assert.NoError(t, err)
		_, err = authSvc.Login(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "patient123"})
		assert.Error(t, err)
	})

	t.Run("clash with a patient without a login keeps the old login", func(t *testing.T) {
		svc, authSvc, store := newService(t)
		_, err := svc.Create(ctx, &model.CreatePatientRequest{FullName: "Bob", Email: "bob@example.com"})
		require.NoError(t, err)
		alice := signup(t, svc, "alice", "alice@example.com")

		email := "bob@example.com"
		_, err = svc.Update(ctx, alice.ID, &model.UpdatePatientRequest{Email: &email})
		require.Error(t, err)
		assert.Equal(t, 409, statusOf(t, err))

		_, err = authSvc.Login(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "patient123"})
		assert.NoError(t, err)

		stored, err := store.Patients().Get(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", stored.Email)
	})

	t.Run("clash with another login restores the row", func(t *testing.T) {
		svc, authSvc, store := newService(t)
		alice := signup(t, svc, "alice", "alice@example.com")
		require.NoError(t, authSvc.Provision(ctx, model.RolePatient, uuid.New(), "ghost@example.com", "patient123"))

		email := "ghost@example.com"
		name := "Alice Renamed"
		_, err := svc.Update(ctx, alice.ID, &model.UpdatePatientRequest{FullName: &name, Email: &email})
		require.Error(t, err)
		assert.Equal(t, 409, statusOf(t, err))

		stored, err := store.Patients().Get(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", stored.Email)
		assert.Equal(t, "alice", stored.FullName)

		_, err = authSvc.Login(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "patient123"})
		assert.NoError(t, err)
	})

	t.Run("missing patient", func(t *testing.T) {
		svc, _, _ := newService(t)
		name := "Nobody"
		_, err := svc.Update(ctx, uuid.New(), &model.UpdatePatientRequest{FullName: &name})
		require.Error(t, err)
		assert.Equal(t, 404, statusOf(t, err))
	})
}

func TestDeleteRevokesLogin(t *testing.T) {
	ctx := context.Background()
	svc, authSvc, _ := newService(t)
	p := signup(t, svc, "alice", "alice@example.com")

	require.NoError(t, svc.Delete(ctx, p.ID))

	_, err := authSvc.Login(ctx, &model.LoginRequest{Email: "alice@example.com", Password: "patient123"})
	assert.Error(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, 404, statusOf(t, err))
}

func TestListSearch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	signup(t, svc, "alice", "alice@example.com")
	signup(t, svc, "bob", "bob@example.com")

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := svc.List(ctx, "BOB@")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].FullName)
}
