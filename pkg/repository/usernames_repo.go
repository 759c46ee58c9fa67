package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/flower-app/flower/pkg/domain"
)

// UsernamesRepository handles the username directory.
// Entries are created once at registration and never updated or deleted.
type UsernamesRepository struct {
	db *sql.DB
}

// NewUsernamesRepository creates a new usernames repository.
func NewUsernamesRepository(db *sql.DB) *UsernamesRepository {
	return &UsernamesRepository{db: db}
}

// Get retrieves a directory entry by lowercased username.
func (r *UsernamesRepository) Get(ctx context.Context, usernameLC string) (*domain.DirectoryEntry, error) {
	query := `
		SELECT username_lc, user_id, email, created_at
		FROM usernames
		WHERE username_lc = $1
	`
	entry := &domain.DirectoryEntry{}
	err := r.db.QueryRowContext(ctx, query, usernameLC).Scan(
		&entry.Username, &entry.UserID, &entry.Email, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDirectoryEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Exists checks whether a directory entry exists for the lowercased username.
func (r *UsernamesRepository) Exists(ctx context.Context, usernameLC string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM usernames WHERE username_lc = $1)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, usernameLC).Scan(&exists)
	return exists, err
}

// Create writes a directory entry outside a transaction, used when
// backfilling an entry a failed registration left missing.
func (r *UsernamesRepository) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	query := `
		INSERT INTO usernames (username_lc, user_id, email, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, entry.Username, entry.UserID, entry.Email, entry.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrUsernameTaken
	}
	return err
}

// CreateTx writes a directory entry within a transaction. The primary key
// on username_lc turns concurrent reservations of the same name into a
// unique violation, reported as ErrUsernameTaken.
func (r *UsernamesRepository) CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.DirectoryEntry) error {
	query := `
		INSERT INTO usernames (username_lc, user_id, email, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, entry.Username, entry.UserID, entry.Email, entry.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrUsernameTaken
	}
	return err
}
