package watering

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// Store is the event log persistence needed by the watering package.
type Store interface {
	Append(ctx context.Context, coupleID string, userID uuid.UUID, clientID *uuid.UUID) (*domain.WateringEvent, error)
	ListSince(ctx context.Context, coupleID string, since time.Time) ([]domain.WateringEvent, error)
	Latest(ctx context.Context, coupleID string) (*domain.WateringEvent, error)
}

// Feed serves live subscriptions over the event log. Each subscription
// delivers an initial snapshot, then a fresh store-consistent snapshot on
// every change signal for its couple. Delivery is at-least-once: bursts of
// changes may collapse into one snapshot, and a snapshot may repeat.
type Feed struct {
	store  Store
	broker *Broker
	logger *slog.Logger
}

// NewFeed creates a feed over a store and a change broker.
func NewFeed(store Store, broker *Broker, logger *slog.Logger) *Feed {
	return &Feed{store: store, broker: broker, logger: logger}
}

// TodaySubscription is a live view of a couple's events since a caller
// supplied start-of-day instant.
type TodaySubscription struct {
	// C yields event snapshots, oldest first. Closed on release.
	C    <-chan []domain.WateringEvent
	stop context.CancelFunc
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *TodaySubscription) Unsubscribe() { s.stop() }

// LatestSubscription is a live view of a couple's single most recent
// event. A nil snapshot means the log is empty.
type LatestSubscription struct {
	// C yields the latest event on every change. Closed on release.
	C    <-chan *domain.WateringEvent
	stop context.CancelFunc
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *LatestSubscription) Unsubscribe() { s.stop() }

// SubscribeToday opens a live subscription to all events of a couple with
// timestamp >= since. The subscription ends when ctx is cancelled or
// Unsubscribe is called, whichever comes first; either way the broker
// registration is released and C is closed.
func (f *Feed) SubscribeToday(ctx context.Context, coupleID string, since time.Time) *TodaySubscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []domain.WateringEvent, 1)
	sig := f.broker.subscribe(coupleID)

	go func() {
		defer close(out)
		defer f.broker.unsubscribe(sig)
		for {
			events, err := f.store.ListSince(ctx, coupleID, since)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Error("today feed query failed", slog.String("couple_id", coupleID), slog.String("error", err.Error()))
				}
			} else {
				select {
				case out <- events:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-sig.ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &TodaySubscription{C: out, stop: cancel}
}

// SubscribeLatest opens a live subscription to the single most recent
// event of a couple. Release semantics match SubscribeToday.
func (f *Feed) SubscribeLatest(ctx context.Context, coupleID string) *LatestSubscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *domain.WateringEvent, 1)
	sig := f.broker.subscribe(coupleID)

	go func() {
		defer close(out)
		defer f.broker.unsubscribe(sig)
		for {
			event, err := f.store.Latest(ctx, coupleID)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Error("latest feed query failed", slog.String("couple_id", coupleID), slog.String("error", err.Error()))
				}
			} else {
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-sig.ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &LatestSubscription{C: out, stop: cancel}
}
