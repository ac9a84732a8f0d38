package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/model"
)

func (r *identityRepository) Create(ctx context.Context, identity *model.Identity) error {
	query := `
		INSERT INTO identities (id, email, password_hash, role, subject_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	identity.ID = uuid.New()
	identity.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.Role,
		identity.SubjectID,
		identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", mapError(err))
	}
	return nil
}

func (r *identityRepository) ListByEmail(ctx context.Context, email string) ([]*model.Identity, error) {
	query := `
		SELECT id, email, password_hash, role, subject_id, created_at
		FROM identities
		WHERE lower(email) = lower($1)
		ORDER BY role ASC
	`
	identities := []*model.Identity{}
	if err := r.db.SelectContext(ctx, &identities, query, email); err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return identities, nil
}

func (r *identityRepository) UpdateEmail(ctx context.Context, role model.Role, subjectID uuid.UUID, email string) error {
	query := `UPDATE identities SET email = $1 WHERE role = $2 AND subject_id = $3`
	if _, err := r.db.ExecContext(ctx, query, email, role, subjectID); err != nil {
		return fmt.Errorf("failed to update identity email: %w", mapError(err))
	}
	return nil
}

func (r *identityRepository) DeleteBySubject(ctx context.Context, role model.Role, subjectID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE role = $1 AND subject_id = $2`, role, subjectID); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}
