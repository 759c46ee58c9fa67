package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/domain"
)

// --- fakes ---

type fakeUserStore struct {
	byEmail map[string]*domain.User
	created []*domain.User
	failed  map[uuid.UUID]int
	reset   map[uuid.UUID]bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]*domain.User),
		failed:  make(map[uuid.UUID]int),
		reset:   make(map[uuid.UUID]bool),
	}
}

func (s *fakeUserStore) CreateTx(ctx context.Context, tx *sql.Tx, user *domain.User) error {
	if _, ok := s.byEmail[user.Email]; ok {
		return domain.ErrEmailAlreadyInUse
	}
	s.byEmail[user.Email] = user
	s.created = append(s.created, user)
	return nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *fakeUserStore) IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID, maxAttempts int, lockout time.Duration) error {
	s.failed[userID]++
	return nil
}

func (s *fakeUserStore) ResetFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error {
	s.reset[userID] = true
	return nil
}

type fakeCredStore struct {
	byUser map[uuid.UUID]*domain.UserPassword
}

func (s *fakeCredStore) CreateTx(ctx context.Context, tx *sql.Tx, cred *domain.UserPassword) error {
	s.byUser[cred.UserID] = cred
	return nil
}

func (s *fakeCredStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPassword, error) {
	cred, ok := s.byUser[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cred, nil
}

type fakeProfileStore struct {
	byUser map[uuid.UUID]*domain.Profile
}

func (s *fakeProfileStore) UpsertTx(ctx context.Context, tx *sql.Tx, profile *domain.Profile) error {
	s.byUser[profile.UserID] = profile
	return nil
}

type fakeDirStore struct {
	entries map[string]*domain.DirectoryEntry
}

func (s *fakeDirStore) Get(ctx context.Context, usernameLC string) (*domain.DirectoryEntry, error) {
	entry, ok := s.entries[usernameLC]
	if !ok {
		return nil, domain.ErrDirectoryEntryNotFound
	}
	return entry, nil
}

func (s *fakeDirStore) Exists(ctx context.Context, usernameLC string) (bool, error) {
	_, ok := s.entries[usernameLC]
	return ok, nil
}

func (s *fakeDirStore) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	if _, ok := s.entries[entry.Username]; ok {
		return domain.ErrUsernameTaken
	}
	s.entries[entry.Username] = entry
	return nil
}

func (s *fakeDirStore) CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.DirectoryEntry) error {
	return s.Create(ctx, entry)
}

func noTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func newTestService() (*PasswordService, *fakeUserStore, *fakeDirStore) {
	users := newFakeUserStore()
	creds := &fakeCredStore{byUser: make(map[uuid.UUID]*domain.UserPassword)}
	profiles := &fakeProfileStore{byUser: make(map[uuid.UUID]*domain.Profile)}
	dirStore := &fakeDirStore{entries: make(map[string]*domain.DirectoryEntry)}
	svc := NewPasswordService(users, creds, profiles, directory.NewService(dirStore), noTx)
	return svc, users, dirStore
}

// --- tests ---

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash has unexpected format: %q", hash)
	}

	ok, err := VerifyPassword("secret1", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Errorf("VerifyPassword(wrong) = %v, %v; want false, nil", ok, err)
	}

	if _, err := VerifyPassword("secret1", "not-a-hash"); err == nil {
		t.Error("VerifyPassword should fail on malformed hash")
	}
}

func TestRegister_Success(t *testing.T) {
	svc, users, dirStore := newTestService()

	user, err := svc.Register(context.Background(), "Alice", "alice@x.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if user.Username != "Alice" {
		t.Errorf("Username = %q, want %q", user.Username, "Alice")
	}
	if user.UsernameLC != "alice" {
		t.Errorf("UsernameLC = %q, want %q", user.UsernameLC, "alice")
	}
	if len(users.created) != 1 {
		t.Fatalf("created %d users, want 1", len(users.created))
	}

	entry, ok := dirStore.entries["alice"]
	if !ok {
		t.Fatal("directory entry not written")
	}
	if entry.UserID != user.ID {
		t.Errorf("directory entry user = %v, want %v", entry.UserID, user.ID)
	}
	if entry.Email != "alice@x.com" {
		t.Errorf("directory entry email = %q, want %q", entry.Email, "alice@x.com")
	}
}

func TestRegister_ValidationShortCircuits(t *testing.T) {
	svc, users, dirStore := newTestService()

	_, err := svc.Register(context.Background(), "a", "alice@x.com", "secret1", "secret1")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Register error = %v, want *ValidationError", err)
	}
	if verr.Field != "username" {
		t.Errorf("Field = %q, want %q", verr.Field, "username")
	}
	if len(users.created) != 0 || len(dirStore.entries) != 0 {
		t.Error("validation failure must not touch the stores")
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "secret1", "secret1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	// Same name with different case still conflicts.
	_, err := svc.Register(context.Background(), "ALICE", "other@x.com", "secret1", "secret1")
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("Register error = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_EmailAlreadyInUse(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "secret1", "secret1"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	_, err := svc.Register(context.Background(), "bob", "alice@x.com", "secret1", "secret1")
	if !errors.Is(err, domain.ErrEmailAlreadyInUse) {
		t.Errorf("Register error = %v, want ErrEmailAlreadyInUse", err)
	}
}

func TestAuthenticate_ByUsernameAndEmail(t *testing.T) {
	svc, _, _ := newTestService()

	registered, err := svc.Register(context.Background(), "alice", "alice@x.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	byName, err := svc.Authenticate(context.Background(), "alice", "secret1")
	if err != nil {
		t.Fatalf("Authenticate by username failed: %v", err)
	}
	byEmail, err := svc.Authenticate(context.Background(), "alice@x.com", "secret1")
	if err != nil {
		t.Fatalf("Authenticate by email failed: %v", err)
	}
	if byName.ID != registered.ID || byEmail.ID != registered.ID {
		t.Error("both identifiers must resolve to the registered account")
	}

	// Username lookup is case-insensitive.
	if _, err := svc.Authenticate(context.Background(), "Alice", "secret1"); err != nil {
		t.Errorf("Authenticate by mixed-case username failed: %v", err)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, users, _ := newTestService()

	registered, err := svc.Register(context.Background(), "alice", "alice@x.com", "secret1", "secret1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		password   string
		want       error
	}{
		{"wrong password", "alice", "nope123", domain.ErrInvalidCredentials},
		{"unknown username", "charlie", "secret1", domain.ErrInvalidCredentials},
		{"unknown email", "charlie@x.com", "secret1", domain.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.identifier, tt.password)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate error = %v, want %v", err, tt.want)
			}
		})
	}

	if users.failed[registered.ID] != 1 {
		t.Errorf("failed attempts recorded = %d, want 1 (only the wrong-password case)", users.failed[registered.ID])
	}
}

func TestAuthenticate_DisabledAndLocked(t *testing.T) {
	svc, users, _ := newTestService()

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "secret1", "secret1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	users.byEmail["alice@x.com"].Disabled = true
	if _, err := svc.Authenticate(context.Background(), "alice", "secret1"); !errors.Is(err, domain.ErrUserDisabled) {
		t.Errorf("Authenticate error = %v, want ErrUserDisabled", err)
	}

	users.byEmail["alice@x.com"].Disabled = false
	lockedUntil := time.Now().Add(10 * time.Minute)
	users.byEmail["alice@x.com"].LockedUntil = &lockedUntil
	if _, err := svc.Authenticate(context.Background(), "alice", "secret1"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Errorf("Authenticate error = %v, want ErrTooManyAttempts", err)
	}
}
