package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// ProfileStore is the persistence needed by the display-name cache.
type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// NameCache is a process-local account-ID -> username mapping, filled
// lazily from the public profile records. An unresolved name is returned
// as "" while the fetch runs in the background; no placeholder is ever
// substituted.
type NameCache struct {
	profiles ProfileStore

	mu       sync.RWMutex
	names    map[uuid.UUID]string
	inflight map[uuid.UUID]struct{}
}

// NewNameCache creates an empty display-name cache.
func NewNameCache(profiles ProfileStore) *NameCache {
	return &NameCache{
		profiles: profiles,
		names:    make(map[uuid.UUID]string),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Lookup returns the cached username for an account, or "" if it is not
// cached yet. A miss triggers a single background fetch; later lookups see
// the resolved name.
func (c *NameCache) Lookup(userID uuid.UUID) string {
	c.mu.RLock()
	name, ok := c.names[userID]
	c.mu.RUnlock()
	if ok {
		return name
	}

	c.mu.Lock()
	if _, fetching := c.inflight[userID]; fetching {
		c.mu.Unlock()
		return ""
	}
	c.inflight[userID] = struct{}{}
	c.mu.Unlock()

	go c.fetch(userID)
	return ""
}

// Resolve returns the username for an account, reading the profile record
// on a cache miss.
func (c *NameCache) Resolve(ctx context.Context, userID uuid.UUID) (string, error) {
	c.mu.RLock()
	name, ok := c.names[userID]
	c.mu.RUnlock()
	if ok {
		return name, nil
	}

	profile, err := c.profiles.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	c.Prime(userID, profile.Username)
	return profile.Username, nil
}

// Prime inserts a known username, e.g. the signed-in user's own.
func (c *NameCache) Prime(userID uuid.UUID, username string) {
	c.mu.Lock()
	c.names[userID] = username
	delete(c.inflight, userID)
	c.mu.Unlock()
}

func (c *NameCache) fetch(userID uuid.UUID) {
	profile, err := c.profiles.Get(context.Background(), userID)

	c.mu.Lock()
	delete(c.inflight, userID)
	if err == nil {
		c.names[userID] = profile.Username
	}
	c.mu.Unlock()
	// Errors are dropped: the next Lookup miss retries.
}
