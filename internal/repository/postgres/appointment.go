package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const appointmentColumns = `id, full_name, phone, email, notes, doctor_id, doctor, specialty,
	date, time, diagnosis, test_results, treatment_notes, doctor_notes, treatment_plan,
	status, version, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, full_name, phone, email, notes, doctor_id, doctor, specialty,
			date, time, diagnosis, test_results, treatment_notes, doctor_notes, treatment_plan,
			status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	now := time.Now().UTC()
	appointment.ID = uuid.New()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	appointment.Version = 1
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusPending
	}

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.FullName,
		appointment.Phone,
		appointment.Email,
		appointment.Notes,
		appointment.DoctorID,
		appointment.Doctor,
		appointment.Specialty,
		appointment.Date,
		appointment.Time,
		appointment.Diagnosis,
		appointment.TestResults,
		appointment.TreatmentNotes,
		appointment.DoctorNotes,
		appointment.TreatmentPlan,
		appointment.Status,
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expectedVersion int) error {
	query := `
		UPDATE appointments
		SET full_name = $1, phone = $2, email = $3, notes = $4, doctor_id = $5, doctor = $6,
			specialty = $7, date = $8, time = $9, diagnosis = $10, test_results = $11,
			treatment_notes = $12, doctor_notes = $13, treatment_plan = $14, status = $15,
			version = version + 1, updated_at = $16
		WHERE id = $17 AND ($18 = 0 OR version = $18)
		RETURNING version
	`
	updatedAt := time.Now().UTC()

	var version int
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, query,
			appointment.FullName,
			appointment.Phone,
			appointment.Email,
			appointment.Notes,
			appointment.DoctorID,
			appointment.Doctor,
			appointment.Specialty,
			appointment.Date,
			appointment.Time,
			appointment.Diagnosis,
			appointment.TestResults,
			appointment.TreatmentNotes,
			appointment.DoctorNotes,
			appointment.TreatmentPlan,
			appointment.Status,
			updatedAt,
			appointment.ID,
			expectedVersion,
		).Scan(&version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		// no row matched: either the id is gone or the version moved on
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, appointment.ID); err != nil {
			return fmt.Errorf("failed to check appointment: %w", err)
		}
		if exists {
			return repository.ErrConflict
		}
		return repository.ErrNotFound
	})
	if err != nil {
		return err
	}

	appointment.Version = version
	appointment.UpdatedAt = updatedAt
	return nil
}

// Delete removes the row; deleting an unknown id is not an error.
func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.Appointment, error) {
	query, args := buildAppointmentQuery(filter)

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func buildAppointmentQuery(filter *model.AppointmentFilter) (string, []interface{}) {
	if filter == nil {
		filter = &model.AppointmentFilter{}
	}

	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.PatientEmail != "" {
		conditions = append(conditions, "lower(email) = lower("+arg(filter.PatientEmail)+")")
	}
	if filter.DoctorID != nil {
		conditions = append(conditions, "doctor_id = "+arg(*filter.DoctorID))
	}
	if filter.DoctorName != "" {
		conditions = append(conditions, "doctor = "+arg(filter.DoctorName))
	}
	if filter.AssignedTo != nil {
		id := arg(filter.AssignedTo.ID)
		name := arg(filter.AssignedTo.Name)
		conditions = append(conditions, fmt.Sprintf("(doctor_id = %s OR (doctor_id IS NULL AND doctor = %s))", id, name))
	}
	if filter.Date != "" {
		conditions = append(conditions, "date = "+arg(filter.Date))
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "date >= "+arg(filter.DateFrom))
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "date <= "+arg(filter.DateTo))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Search != "" {
		p := arg(containsPattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE %s OR phone ILIKE %s OR email ILIKE %s)", p, p, p))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch filter.OrderBy {
	case model.OrderTimeAsc:
		query += " ORDER BY time ASC, created_at ASC"
	case model.OrderDateDesc:
		query += " ORDER BY date DESC, time DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	return query, args
}

func (r *appointmentRepository) CountByDate(ctx context.Context, from, to string) (map[string]int, error) {
	query := `
		SELECT date, COUNT(*) AS count
		FROM appointments
		WHERE date BETWEEN $1 AND $2
		GROUP BY date
	`
	var rows []struct {
		Date  string `db:"date"`
		Count int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to count appointments by date: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Date] = row.Count
	}
	return counts, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context) (map[model.AppointmentStatus]int, error) {
	var rows []struct {
		Status model.AppointmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM appointments GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count appointments by status: %w", err)
	}

	counts := make(map[model.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
