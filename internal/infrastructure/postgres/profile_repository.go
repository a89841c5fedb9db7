package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nw-com/nw-patrol/internal/domain"
)

// ProfileRepository implements domain.ProfileStore on the user_profiles table
type ProfileRepository struct {
	db     DatabaseIface
	logger *slog.Logger
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(db DatabaseIface, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger.With("component", "profile_repository"),
	}
}

// Get loads the profile stored under id. An id that is not a UUID cannot key
// a row, so it reports not found without querying.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrProfileNotFound
	}

	query := `
		SELECT id, email, name, role, title, communities, created_at, updated_at
		FROM user_profiles
		WHERE id = $1`

	var p domain.UserProfile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.Role,
		&p.Title,
		&p.Communities,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p.Communities == nil {
		p.Communities = []string{}
	}

	return &p, nil
}

// Put writes the profile, replacing any row already stored under its id
func (r *ProfileRepository) Put(ctx context.Context, profile *domain.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, email, name, role, title, communities)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			title = EXCLUDED.title,
			communities = EXCLUDED.communities,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		profile.Role,
		profile.Title,
		nonNil(profile.Communities),
	)
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}

	r.logger.Debug("profile stored", "account_id", profile.ID)
	return nil
}

// Update replaces the mutable fields of an existing profile
func (r *ProfileRepository) Update(ctx context.Context, id string, changes domain.ProfileChanges) error {
	query := `
		UPDATE user_profiles
		SET name = $2, role = $3, title = $4, communities = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id,
		changes.Name,
		changes.Role,
		changes.Title,
		nonNil(changes.Communities),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	r.logger.Debug("profile updated", "account_id", id)
	return nil
}

// Delete removes the profile stored under id
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	r.logger.Debug("profile deleted", "account_id", id)
	return nil
}

// nonNil keeps NULL out of the communities column.
func nonNil(communities []string) []string {
	if communities == nil {
		return []string{}
	}
	return communities
}
