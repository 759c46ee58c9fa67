package watering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTickInterval is how often a running projection re-evaluates
// dryness against the clock.
const DefaultTickInterval = time.Minute

// Runner couples a projection to the two live subscriptions and a
// periodic tick, publishing a fresh View after every input. Views
// coalesce: a slow consumer always gets the newest snapshot.
type Runner struct {
	// C yields view snapshots. Closed when the runner stops.
	C <-chan View

	proj *Projection
	kick chan struct{}
	stop context.CancelFunc
}

// Watch starts a projection runner for one account's perspective on a
// couple. since is the caller's start-of-local-day instant for the today
// counters. The runner stops, releasing both subscriptions and the
// ticker, when ctx is cancelled or Close is called.
func (f *Feed) Watch(ctx context.Context, coupleID string, self uuid.UUID, since time.Time, dryAfter, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	proj := NewProjection(self, dryAfter)
	today := f.SubscribeToday(ctx, coupleID, since)
	latest := f.SubscribeLatest(ctx, coupleID)
	out := make(chan View, 1)
	kick := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer today.Unsubscribe()
		defer latest.Unsubscribe()

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case events, ok := <-today.C:
				if !ok {
					return
				}
				proj.ApplyToday(events)
			case event, ok := <-latest.C:
				if !ok {
					return
				}
				proj.ApplyLatest(event)
			case <-ticker.C:
			case <-kick:
			case <-ctx.Done():
				return
			}

			view := proj.Snapshot(time.Now())
			select {
			case out <- view:
			default:
				// Replace the stale undelivered snapshot.
				select {
				case <-out:
				default:
				}
				out <- view
			}
		}
	}()

	return &Runner{C: out, proj: proj, kick: kick, stop: cancel}
}

// Optimistic feeds a locally stamped watering into the running projection
// and publishes a view immediately, before the store round-trip confirms
// the event. The record endpoint fans this out to the writer's own
// streams through Watchers.
func (r *Runner) Optimistic(clientID uuid.UUID, now time.Time) {
	r.proj.Optimistic(clientID, now)
	r.publish()
}

// Abandon retires a pending optimistic event whose write failed and
// publishes the corrected view.
func (r *Runner) Abandon(clientID uuid.UUID) {
	r.proj.Abandon(clientID)
	r.publish()
}

func (r *Runner) publish() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Close stops the runner and releases its subscriptions. Safe to call
// more than once.
func (r *Runner) Close() { r.stop() }
