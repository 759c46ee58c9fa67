package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

type fakeProfiles struct {
	byUser map[uuid.UUID]*domain.Profile
}

func (s *fakeProfiles) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, ok := s.byUser[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return profile, nil
}

func (s *fakeProfiles) Upsert(ctx context.Context, profile *domain.Profile) error {
	s.byUser[profile.UserID] = profile
	return nil
}

func TestNameCache_PrimeAndLookup(t *testing.T) {
	cache := NewNameCache(&fakeProfiles{byUser: make(map[uuid.UUID]*domain.Profile)})
	userID := uuid.New()

	if got := cache.Lookup(userID); got != "" {
		t.Errorf("Lookup before prime = %q, want empty", got)
	}

	cache.Prime(userID, "alice")
	if got := cache.Lookup(userID); got != "alice" {
		t.Errorf("Lookup after prime = %q, want alice", got)
	}
}

func TestNameCache_Resolve(t *testing.T) {
	userID := uuid.New()
	profiles := &fakeProfiles{byUser: map[uuid.UUID]*domain.Profile{
		userID: {UserID: userID, Username: "alice"},
	}}
	cache := NewNameCache(profiles)

	name, err := cache.Resolve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if name != "alice" {
		t.Errorf("Resolve = %q, want alice", name)
	}

	// Resolved names are cached for synchronous lookups.
	if got := cache.Lookup(userID); got != "alice" {
		t.Errorf("Lookup after resolve = %q, want alice", got)
	}

	if _, err := cache.Resolve(context.Background(), uuid.New()); err == nil {
		t.Error("Resolve of unknown account should fail")
	}
}
