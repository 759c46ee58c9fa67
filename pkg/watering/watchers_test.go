package watering

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWatchers_OptimisticReachesRegisteredRunner(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	watchers := NewWatchers()
	self := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", self, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()
	release := watchers.Register("demo-couple", self, runner)
	defer release()

	if view := receiveView(t, runner.C); !view.Dry {
		t.Fatal("empty log must start dry")
	}

	// Nothing in the store yet: the registered runner still turns fresh.
	watchers.Optimistic("demo-couple", self, uuid.New(), time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		view := receiveView(t, runner.C)
		if view.MyToday == 1 && !view.Dry {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reflected the optimistic event: %+v", view)
		}
	}
}

func TestWatchers_AbandonRevertsView(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	watchers := NewWatchers()
	self := uuid.New()
	clientID := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", self, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()
	release := watchers.Register("demo-couple", self, runner)
	defer release()

	receiveView(t, runner.C)
	watchers.Optimistic("demo-couple", self, clientID, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for {
		view := receiveView(t, runner.C)
		if view.MyToday == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reflected the optimistic event: %+v", view)
		}
	}

	watchers.Abandon("demo-couple", self, clientID)
	for {
		view := receiveView(t, runner.C)
		if view.MyToday == 0 && view.Dry {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reverted after abandon: %+v", view)
		}
	}
}

func TestWatchers_ScopedToAccount(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	watchers := NewWatchers()
	self := uuid.New()
	partner := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", partner, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()
	release := watchers.Register("demo-couple", partner, runner)
	defer release()

	receiveView(t, runner.C)

	// An optimistic tap by a different account must not reach the
	// partner's runners: they wait for the confirmed row.
	watchers.Optimistic("demo-couple", self, uuid.New(), time.Now())

	select {
	case view := <-runner.C:
		t.Fatalf("partner runner received a view: %+v", view)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchers_ReleaseStopsDelivery(t *testing.T) {
	store := &fakeStore{}
	broker := NewBroker()
	feed := NewFeed(store, broker, discardLogger())
	watchers := NewWatchers()
	self := uuid.New()

	runner := feed.Watch(context.Background(), "demo-couple", self, time.Now().Add(-time.Hour), DefaultDryAfter, time.Hour)
	defer runner.Close()
	release := watchers.Register("demo-couple", self, runner)

	receiveView(t, runner.C)
	release()
	release() // safe to call twice

	watchers.Optimistic("demo-couple", self, uuid.New(), time.Now())

	select {
	case view := <-runner.C:
		t.Fatalf("released runner received a view: %+v", view)
	case <-time.After(100 * time.Millisecond):
	}
}
