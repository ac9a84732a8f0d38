package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const doctorColumns = `id, full_name, specialty, email, experience, availability, times, bio, photo,
	rating, created_at, updated_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, full_name, specialty, email, experience, availability, times, bio, photo,
			rating, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	now := time.Now().UTC()
	doctor.ID = uuid.New()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.FullName,
		doctor.Specialty,
		doctor.Email,
		doctor.Experience,
		doctor.Availability,
		doctor.Times,
		doctor.Bio,
		doctor.Photo,
		doctor.Rating,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapError(err))
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET full_name = $1, specialty = $2, email = $3, experience = $4, availability = $5,
			times = $6, bio = $7, photo = $8, rating = $9, updated_at = $10
		WHERE id = $11
	`
	doctor.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		doctor.FullName,
		doctor.Specialty,
		doctor.Email,
		doctor.Experience,
		doctor.Availability,
		doctor.Times,
		doctor.Bio,
		doctor.Photo,
		doctor.Rating,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", mapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`

	var (
		conditions []string
		args       []interface{}
	)
	if filter != nil {
		if filter.Specialty != "" {
			args = append(args, filter.Specialty)
			conditions = append(conditions, fmt.Sprintf("lower(specialty) = lower($%d)", len(args)))
		}
		if filter.Search != "" {
			args = append(args, containsPattern(filter.Search))
			conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR specialty ILIKE $%d)", len(args), len(args)))
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY full_name ASC"

	doctors := []*model.Doctor{}
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) FindByName(ctx context.Context, name string) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE lower(full_name) = lower($1)`

	doctors := []*model.Doctor{}
	if err := r.db.SelectContext(ctx, &doctors, query, strings.TrimSpace(name)); err != nil {
		return nil, fmt.Errorf("failed to find doctor by name: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM doctors`); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return n, nil
}
