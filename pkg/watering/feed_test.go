package watering

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// fakeStore is an in-memory event log.
type fakeStore struct {
	mu     sync.Mutex
	events []domain.WateringEvent
}

func (s *fakeStore) Append(ctx context.Context, coupleID string, userID uuid.UUID, clientID *uuid.UUID) (*domain.WateringEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := domain.WateringEvent{
		ID:        uuid.New(),
		CoupleID:  coupleID,
		UserID:    userID,
		ClientID:  clientID,
		Timestamp: time.Now(),
	}
	s.events = append(s.events, e)
	return &e, nil
}

func (s *fakeStore) ListSince(ctx context.Context, coupleID string, since time.Time) ([]domain.WateringEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WateringEvent
	for _, e := range s.events {
		if e.CoupleID == coupleID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Latest(ctx context.Context, coupleID string) (*domain.WateringEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.WateringEvent
	for i := range s.events {
		e := s.events[i]
		if e.CoupleID != coupleID {
			continue
		}
		if latest == nil || e.Timestamp.After(latest.Timestamp) {
			latest = &e
		}
	}
	return latest, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func receiveEvents(t *testing.T, c <-chan []domain.WateringEvent) []domain.WateringEvent {
	t.Helper()
	select {
	case events := <-c:
		return events
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeToday_InitialAndLiveSnapshots(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	svc := NewService(store, broker)
	userID := uuid.New()

	sub := feed.SubscribeToday(context.Background(), "demo-couple", time.Now().Add(-time.Hour))
	defer sub.Unsubscribe()

	if events := receiveEvents(t, sub.C); len(events) != 0 {
		t.Fatalf("initial snapshot has %d events, want 0", len(events))
	}

	if _, err := svc.Record(context.Background(), "demo-couple", userID, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	events := receiveEvents(t, sub.C)
	if len(events) != 1 {
		t.Fatalf("snapshot after record has %d events, want 1", len(events))
	}
	if events[0].UserID != userID {
		t.Errorf("event user = %v, want %v", events[0].UserID, userID)
	}
}

func TestSubscribeLatest(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	svc := NewService(store, broker)

	sub := feed.SubscribeLatest(context.Background(), "demo-couple")
	defer sub.Unsubscribe()

	select {
	case latest := <-sub.C:
		if latest != nil {
			t.Fatalf("initial latest = %+v, want nil", latest)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	recorded, err := svc.Record(context.Background(), "demo-couple", uuid.New(), nil)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	select {
	case latest := <-sub.C:
		if latest == nil || latest.ID != recorded.ID {
			t.Errorf("latest = %+v, want event %v", latest, recorded.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live snapshot")
	}
}

func TestSubscribeToday_ReleaseOnUnsubscribe(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())

	sub := feed.SubscribeToday(context.Background(), "demo-couple", time.Now())
	receiveEvents(t, sub.C)
	sub.Unsubscribe()

	// The channel closes and the broker registration is released.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, open := <-sub.C; !open {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("channel not closed after Unsubscribe")
		}
	}
	for broker.subscriberCount("demo-couple") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("broker subscription leaked after Unsubscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribeToday_ReleaseOnContextCancel(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	sub := feed.SubscribeToday(ctx, "demo-couple", time.Now())
	receiveEvents(t, sub.C)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for broker.subscriberCount("demo-couple") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("broker subscription leaked after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_PublishesViews(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	svc := NewService(store, broker)
	self := uuid.New()
	partner := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", self, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()

	// Initial views: empty log, dry plant.
	view := receiveView(t, runner.C)
	if !view.Dry || view.MyToday != 0 || view.PartnerToday != 0 {
		t.Fatalf("initial view = %+v, want dry and empty", view)
	}

	if _, err := svc.Record(context.Background(), "demo-couple", partner, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		view = receiveView(t, runner.C)
		if view.PartnerToday == 1 && !view.Dry {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reflected partner event: %+v", view)
		}
	}
}

func receiveView(t *testing.T, c <-chan View) View {
	t.Helper()
	select {
	case view, ok := <-c:
		if !ok {
			t.Fatal("view channel closed")
		}
		return view
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view")
		return View{}
	}
}

func TestWatch_OptimisticBeforeConfirmation(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	self := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", self, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()

	view := receiveView(t, runner.C)
	if !view.Dry {
		t.Fatal("empty log must start dry")
	}

	// Nothing is written to the store: the view must still turn fresh and
	// count the pending event.
	runner.Optimistic(uuid.New(), time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		view = receiveView(t, runner.C)
		if view.MyToday == 1 && !view.Dry {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reflected optimistic event: %+v", view)
		}
	}
}
