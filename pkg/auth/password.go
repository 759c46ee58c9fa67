package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/domain"
)

// Argon2id parameters.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Account lockout policy.
const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

// UserStore is the user persistence needed by the password service.
type UserStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID, maxAttempts int, lockout time.Duration) error
	ResetFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error
}

// CredentialStore is the credential persistence needed by the password service.
type CredentialStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, cred *domain.UserPassword) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPassword, error)
}

// ProfileStore is the public profile persistence needed by the password service.
type ProfileStore interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, profile *domain.Profile) error
}

// TxFunc runs fn inside a database transaction.
type TxFunc func(ctx context.Context, fn func(tx *sql.Tx) error) error

// PasswordService handles password-based registration and authentication.
type PasswordService struct {
	users     UserStore
	creds     CredentialStore
	profiles  ProfileStore
	directory *directory.Service
	inTx      TxFunc
}

// NewPasswordService creates a password service.
func NewPasswordService(users UserStore, creds CredentialStore, profiles ProfileStore, dir *directory.Service, inTx TxFunc) *PasswordService {
	return &PasswordService{
		users:     users,
		creds:     creds,
		profiles:  profiles,
		directory: dir,
		inTx:      inTx,
	}
}

// Register creates an account: the user record, its credential, its public
// profile, and its directory entry, all in one transaction. Validation and
// the conflict pre-checks run first and short-circuit without writing
// anything. A concurrent registration of the same username or email still
// surfaces as ErrUsernameTaken or ErrEmailAlreadyInUse via the unique
// constraints.
func (s *PasswordService) Register(ctx context.Context, username, email, password, confirm string) (*domain.User, error) {
	if verr := ValidateRegistration(username, email, password, confirm); verr != nil {
		return nil, verr
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	taken, err := s.directory.Taken(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, domain.ErrEmailAlreadyInUse
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:         uuid.New(),
		Email:      email,
		Username:   username,
		UsernameLC: directory.Normalize(username),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.users.CreateTx(ctx, tx, user); err != nil {
			return err
		}
		if err := s.creds.CreateTx(ctx, tx, &domain.UserPassword{
			UserID:            user.ID,
			PasswordHash:      hash,
			PasswordUpdatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.profiles.UpsertTx(ctx, tx, &domain.Profile{
			UserID:   user.ID,
			Username: username,
		}); err != nil {
			return err
		}
		return s.directory.ReserveTx(ctx, tx, username, user.ID, email)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies a sign-in identifier (username or email) and
// password. A username that resolves to nothing is reported as
// ErrInvalidCredentials, the same as a wrong password, so responses do not
// reveal which usernames exist.
func (s *PasswordService) Authenticate(ctx context.Context, usernameOrEmail, password string) (*domain.User, error) {
	email, err := s.directory.Resolve(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, domain.ErrDirectoryEntryNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("resolving identifier: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	if user.Disabled {
		return nil, domain.ErrUserDisabled
	}
	if user.IsLocked() {
		return nil, domain.ErrTooManyAttempts
	}

	cred, err := s.creds.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("getting credential: %w", err)
	}

	ok, err := VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		if err := s.users.IncrementFailedLoginAttempts(ctx, user.ID, maxFailedAttempts, lockoutDuration); err != nil {
			return nil, fmt.Errorf("recording failed attempt: %w", err)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 {
		if err := s.users.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("resetting failed attempts: %w", err)
		}
	}
	return user, nil
}

// HashPassword hashes a password with argon2id, returning the encoded hash
// string with its parameters and salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// VerifyPassword checks a password against an encoded argon2id hash.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, err
	}
	if version != argon2.Version {
		return false, errors.New("incompatible argon2 version")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return constantTimeCompare(hash, expected), nil
}
