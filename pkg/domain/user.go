package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID                  uuid.UUID
	Email               string
	Username            string
	UsernameLC          string
	EmailVerified       bool
	Disabled            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// UserPassword stores password credentials separately from the account record.
type UserPassword struct {
	UserID            uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}

// DirectoryEntry maps a lowercased username to its owning account.
// The email copy is redundant on purpose: it lets sign-in by username
// resolve to an email without touching the users table.
type DirectoryEntry struct {
	Username  string
	UserID    uuid.UUID
	Email     string
	CreatedAt time.Time
}

// Profile is the public display-name record readable by any signed-in user.
type Profile struct {
	UserID   uuid.UUID
	Username string
}
