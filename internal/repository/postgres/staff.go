package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

func staffTable(role model.Role) (string, error) {
	switch role {
	case model.RoleAdmin:
		return "admins", nil
	case model.RoleReceptionist:
		return "receptionists", nil
	default:
		return "", fmt.Errorf("no staff table for role %q", role)
	}
}

func (r *staffRepository) Create(ctx context.Context, role model.Role, staff *model.Staff) error {
	table, err := staffTable(role)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	staff.ID = uuid.New()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO %s (id, full_name, email, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`, table)
	if _, err := r.db.ExecContext(ctx, query, staff.ID, staff.FullName, staff.Email, staff.CreatedAt, staff.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create %s: %w", role, mapError(err))
	}
	return nil
}

func (r *staffRepository) Get(ctx context.Context, role model.Role, id uuid.UUID) (*model.Staff, error) {
	table, err := staffTable(role)
	if err != nil {
		return nil, err
	}

	var staff model.Staff
	query := fmt.Sprintf(`SELECT id, full_name, email, created_at, updated_at FROM %s WHERE id = $1`, table)
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", role, err)
	}
	return &staff, nil
}
