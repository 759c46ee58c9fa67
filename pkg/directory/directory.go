// Package directory implements the username directory: the mapping from a
// chosen unique username to its owning account and email. It is what makes
// "sign in by username" work, and it owns the case-insensitive uniqueness
// rule for usernames.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// Store is the persistence needed by the directory service.
type Store interface {
	Get(ctx context.Context, usernameLC string) (*domain.DirectoryEntry, error)
	Exists(ctx context.Context, usernameLC string) (bool, error)
	Create(ctx context.Context, entry *domain.DirectoryEntry) error
	CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.DirectoryEntry) error
}

// Service resolves and reserves usernames.
type Service struct {
	store Store
}

// NewService creates a directory service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Normalize lowercases and trims a username to its directory key form.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Taken reports whether a username is already reserved, case-insensitively.
func (s *Service) Taken(ctx context.Context, username string) (bool, error) {
	return s.store.Exists(ctx, Normalize(username))
}

// ReserveTx writes the directory entry for a newly registered account
// within the registration transaction. The store reports a concurrent
// reservation of the same name as domain.ErrUsernameTaken.
func (s *Service) ReserveTx(ctx context.Context, tx *sql.Tx, username string, userID uuid.UUID, email string) error {
	return s.store.CreateTx(ctx, tx, &domain.DirectoryEntry{
		Username:  Normalize(username),
		UserID:    userID,
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now(),
	})
}

// Resolve turns a sign-in identifier into an email address. Input
// containing '@' is treated as an email verbatim, with no directory read.
// Anything else is looked up as a username, case-insensitively; a missing
// entry or an entry without an email yields ErrDirectoryEntryNotFound.
func (s *Service) Resolve(ctx context.Context, usernameOrEmail string) (string, error) {
	trimmed := strings.TrimSpace(usernameOrEmail)
	if strings.Contains(trimmed, "@") {
		return trimmed, nil
	}

	entry, err := s.store.Get(ctx, strings.ToLower(trimmed))
	if err != nil {
		return "", err
	}
	if entry.Email == "" {
		return "", domain.ErrDirectoryEntryNotFound
	}
	return entry.Email, nil
}

// Heal backfills the user's directory entry if a past registration
// committed the account but not the directory row. It is safe to call on
// every authenticated access.
func (s *Service) Heal(ctx context.Context, user *domain.User) error {
	_, err := s.store.Get(ctx, user.UsernameLC)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrDirectoryEntryNotFound) {
		return err
	}
	err = s.store.Create(ctx, &domain.DirectoryEntry{
		Username:  user.UsernameLC,
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: time.Now(),
	})
	if errors.Is(err, domain.ErrUsernameTaken) {
		// Lost a race with another heal of the same entry.
		return nil
	}
	return err
}
