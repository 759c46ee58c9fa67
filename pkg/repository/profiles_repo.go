package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// ProfilesRepository handles the public display-name records.
type ProfilesRepository struct {
	db *sql.DB
}

// NewProfilesRepository creates a new profiles repository.
func NewProfilesRepository(db *sql.DB) *ProfilesRepository {
	return &ProfilesRepository{db: db}
}

// Get retrieves a profile by user ID.
func (r *ProfilesRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT user_id, username FROM profiles WHERE user_id = $1`
	profile := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&profile.UserID, &profile.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Upsert writes a profile, replacing any existing username for the user.
func (r *ProfilesRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username
	`
	_, err := r.db.ExecContext(ctx, query, profile.UserID, profile.Username)
	return err
}

// UpsertTx writes a profile within a transaction.
func (r *ProfilesRepository) UpsertTx(ctx context.Context, tx *sql.Tx, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username
	`
	_, err := tx.ExecContext(ctx, query, profile.UserID, profile.Username)
	return err
}
