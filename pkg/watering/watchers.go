package watering

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type watcherKey struct {
	coupleID string
	userID   uuid.UUID
}

// Watchers tracks the live runners of each account so a write arriving
// over HTTP can reach the writer's own streams before the store confirms
// it. A client watching and recording over two connections sees its tap
// immediately; the confirmed row later retires the pending copy by
// client id.
type Watchers struct {
	mu      sync.Mutex
	runners map[watcherKey]map[*Runner]struct{}
}

// NewWatchers creates an empty registry.
func NewWatchers() *Watchers {
	return &Watchers{runners: make(map[watcherKey]map[*Runner]struct{})}
}

// Register adds a runner to the account's set and returns its release
// function. The release function is safe to call more than once.
func (w *Watchers) Register(coupleID string, userID uuid.UUID, r *Runner) func() {
	key := watcherKey{coupleID: coupleID, userID: userID}

	w.mu.Lock()
	set, ok := w.runners[key]
	if !ok {
		set = make(map[*Runner]struct{})
		w.runners[key] = set
	}
	set[r] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(set, r)
			if len(set) == 0 {
				delete(w.runners, key)
			}
		})
	}
}

// Optimistic feeds a locally stamped watering into every runner the
// account currently has open.
func (w *Watchers) Optimistic(coupleID string, userID, clientID uuid.UUID, now time.Time) {
	for _, r := range w.snapshot(coupleID, userID) {
		r.Optimistic(clientID, now)
	}
}

// Abandon retires a pending optimistic event from every runner the
// account currently has open, after its store write failed.
func (w *Watchers) Abandon(coupleID string, userID, clientID uuid.UUID) {
	for _, r := range w.snapshot(coupleID, userID) {
		r.Abandon(clientID)
	}
}

func (w *Watchers) snapshot(coupleID string, userID uuid.UUID) []*Runner {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.runners[watcherKey{coupleID: coupleID, userID: userID}]
	out := make([]*Runner, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	return out
}
