package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

type fakeStore struct {
	entries map[string]*domain.DirectoryEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*domain.DirectoryEntry)}
}

func (s *fakeStore) Get(ctx context.Context, usernameLC string) (*domain.DirectoryEntry, error) {
	entry, ok := s.entries[usernameLC]
	if !ok {
		return nil, domain.ErrDirectoryEntryNotFound
	}
	return entry, nil
}

func (s *fakeStore) Exists(ctx context.Context, usernameLC string) (bool, error) {
	_, ok := s.entries[usernameLC]
	return ok, nil
}

func (s *fakeStore) Create(ctx context.Context, entry *domain.DirectoryEntry) error {
	if _, ok := s.entries[entry.Username]; ok {
		return domain.ErrUsernameTaken
	}
	s.entries[entry.Username] = entry
	return nil
}

func (s *fakeStore) CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.DirectoryEntry) error {
	return s.Create(ctx, entry)
}

func TestTaken_CaseInsensitive(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	userID := uuid.New()

	if err := svc.ReserveTx(context.Background(), nil, "Alice", userID, "alice@x.com"); err != nil {
		t.Fatalf("ReserveTx failed: %v", err)
	}

	for _, name := range []string{"alice", "Alice", "ALICE", " alice "} {
		taken, err := svc.Taken(context.Background(), name)
		if err != nil {
			t.Fatalf("Taken(%q) failed: %v", name, err)
		}
		if !taken {
			t.Errorf("Taken(%q) = false, want true", name)
		}
	}

	taken, err := svc.Taken(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Taken failed: %v", err)
	}
	if taken {
		t.Error("Taken(bob) = true, want false")
	}
}

func TestReserve_Conflict(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	if err := svc.ReserveTx(context.Background(), nil, "alice", uuid.New(), "alice@x.com"); err != nil {
		t.Fatalf("first ReserveTx failed: %v", err)
	}
	err := svc.ReserveTx(context.Background(), nil, "ALICE", uuid.New(), "other@x.com")
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("second ReserveTx error = %v, want ErrUsernameTaken", err)
	}
}

func TestResolve(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	if err := svc.ReserveTx(context.Background(), nil, "alice", uuid.New(), "alice@x.com"); err != nil {
		t.Fatalf("ReserveTx failed: %v", err)
	}
	store.entries["noemail"] = &domain.DirectoryEntry{Username: "noemail", UserID: uuid.New()}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"email passes through verbatim", "Whatever@Anywhere.com", "Whatever@Anywhere.com", nil},
		{"email trimmed", "  bob@x.com ", "bob@x.com", nil},
		{"username lowercase", "alice", "alice@x.com", nil},
		{"username mixed case", "ALICE", "alice@x.com", nil},
		{"unknown username", "charlie", "", domain.ErrDirectoryEntryNotFound},
		{"entry without email", "noemail", "", domain.ErrDirectoryEntryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Resolve(context.Background(), tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHeal_BackfillsMissingEntry(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	user := &domain.User{
		ID:         uuid.New(),
		Email:      "alice@x.com",
		Username:   "Alice",
		UsernameLC: "alice",
		CreatedAt:  time.Now(),
	}

	if err := svc.Heal(context.Background(), user); err != nil {
		t.Fatalf("Heal failed: %v", err)
	}
	entry, ok := store.entries["alice"]
	if !ok {
		t.Fatal("Heal did not backfill the entry")
	}
	if entry.UserID != user.ID || entry.Email != user.Email {
		t.Errorf("backfilled entry = %+v", entry)
	}

	// Healing again is a no-op.
	if err := svc.Heal(context.Background(), user); err != nil {
		t.Errorf("second Heal failed: %v", err)
	}
}
