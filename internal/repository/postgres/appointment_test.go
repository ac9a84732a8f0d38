package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

var appointmentColumnNames = []string{
	"id", "full_name", "phone", "email", "notes", "doctor_id", "doctor", "specialty",
	"date", "time", "diagnosis", "test_results", "treatment_notes", "doctor_notes", "treatment_plan",
	"status", "version", "created_at", "updated_at",
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestAppointmentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(anyArgs(19)...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	apt := &model.Appointment{FullName: "Jane Doe", Doctor: "Dr. Grey", Date: "2030-03-10", Time: "10:30"}
	require.NoError(t, repo.Create(context.Background(), apt))

	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, 1, apt.Version)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.False(t, apt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(appointmentColumnNames).AddRow(
			id.String(), "Jane Doe", "555-0100", "jane@example.com", nil, nil, "Dr. Grey", "Surgery",
			"2030-03-10", "10:30", "Healthy", nil, nil, nil, nil,
			"Confirmed", 2, now, now,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
			WithArgs(id).
			WillReturnRows(rows)

		apt, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, apt.ID)
		assert.Equal(t, "jane@example.com", model.StringValue(apt.Email))
		assert.Nil(t, apt.DoctorID)
		assert.Equal(t, "Healthy", model.StringValue(apt.Diagnosis))
		assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
		assert.Equal(t, 2, apt.Version)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Update(t *testing.T) {
	id := uuid.New()
	updateArgs := func(expected int) []driver.Value {
		args := anyArgs(16)
		return append(args, id, expected)
	}

	t.Run("bumps the version", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(updateArgs(2)...).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
		mock.ExpectCommit()

		apt := &model.Appointment{Base: model.Base{ID: id}, Version: 2}
		require.NoError(t, repo.Update(context.Background(), apt, 2))
		assert.Equal(t, 3, apt.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(updateArgs(1)...).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		apt := &model.Appointment{Base: model.Base{ID: id}, Version: 1}
		err := repo.Update(context.Background(), apt, 1)
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Equal(t, 1, apt.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deleted row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(updateArgs(0)...).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		err := repo.Update(context.Background(), &model.Appointment{Base: model.Base{ID: id}}, 0)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(updateArgs(0)...).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := repo.Update(context.Background(), &model.Appointment{Base: model.Base{ID: id}}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update appointment")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAppointmentRepository_DeleteIsIdempotent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAppointmentQuery(t *testing.T) {
	doctorID := uuid.New()

	tests := []struct {
		name        string
		filter      *model.AppointmentFilter
		wantWhere   []string
		wantOrder   string
		wantArgs    []interface{}
		wantNoWhere bool
	}{
		{
			name:        "nil filter",
			filter:      nil,
			wantOrder:   "ORDER BY created_at DESC",
			wantNoWhere: true,
		},
		{
			name:      "patient history",
			filter:    &model.AppointmentFilter{PatientEmail: "Pat@Example.com", OrderBy: model.OrderDateDesc},
			wantWhere: []string{"lower(email) = lower($1)"},
			wantOrder: "ORDER BY date DESC, time DESC",
			wantArgs:  []interface{}{"Pat@Example.com"},
		},
		{
			name: "doctor workspace",
			filter: &model.AppointmentFilter{
				AssignedTo: &model.DoctorRef{ID: doctorID, Name: "Dr. Grey"},
				Status:     model.AppointmentStatusConfirmed,
			},
			wantWhere: []string{"(doctor_id = $1 OR (doctor_id IS NULL AND doctor = $2))", "status = $3"},
			wantOrder: "ORDER BY created_at DESC",
			wantArgs:  []interface{}{doctorID, "Dr. Grey", model.AppointmentStatusConfirmed},
		},
		{
			name:      "daily report",
			filter:    &model.AppointmentFilter{Date: "2030-03-10", OrderBy: model.OrderTimeAsc},
			wantWhere: []string{"date = $1"},
			wantOrder: "ORDER BY time ASC, created_at ASC",
			wantArgs:  []interface{}{"2030-03-10"},
		},
		{
			name:      "search and range",
			filter:    &model.AppointmentFilter{Search: "jane", DateFrom: "2030-01-01", DateTo: "2030-01-31"},
			wantWhere: []string{"date >= $1", "date <= $2", "(full_name ILIKE $3 OR phone ILIKE $3 OR email ILIKE $3)"},
			wantOrder: "ORDER BY created_at DESC",
			wantArgs:  []interface{}{"2030-01-01", "2030-01-31", "%jane%"},
		},
		{
			name:      "search wildcards are literal",
			filter:    &model.AppointmentFilter{Search: `50%_off\`},
			wantWhere: []string{"(full_name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1)"},
			wantOrder: "ORDER BY created_at DESC",
			wantArgs:  []interface{}{`%50\%\_off\\%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildAppointmentQuery(tt.filter)

			if tt.wantNoWhere {
				assert.NotContains(t, query, "WHERE")
			}
			for _, w := range tt.wantWhere {
				assert.Contains(t, query, w)
			}
			assert.Contains(t, query, tt.wantOrder)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestAppointmentRepository_CountByDate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery("SELECT date, COUNT").
		WithArgs("2030-03-04", "2030-03-10").
		WillReturnRows(sqlmock.NewRows([]string{"date", "count"}).
			AddRow("2030-03-05", 2).
			AddRow("2030-03-10", 1))

	counts, err := repo.CountByDate(context.Background(), "2030-03-04", "2030-03-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2030-03-05": 2, "2030-03-10": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&pq.Error{Code: pqUniqueViolation}), repository.ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}
