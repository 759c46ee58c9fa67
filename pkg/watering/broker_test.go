package watering

import (
	"testing"
	"time"
)

func TestBroker_PublishWakesSubscriber(t *testing.T) {
	b := NewBroker()
	s := b.subscribe("demo-couple")
	defer b.unsubscribe(s)

	b.Publish("demo-couple")
	select {
	case <-s.ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber not woken")
	}
}

func TestBroker_ScopedToCouple(t *testing.T) {
	b := NewBroker()
	s := b.subscribe("demo-couple")
	defer b.unsubscribe(s)

	b.Publish("other-couple")
	select {
	case <-s.ch:
		t.Fatal("woken by another couple's publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_CoalescesSignals(t *testing.T) {
	b := NewBroker()
	s := b.subscribe("demo-couple")
	defer b.unsubscribe(s)

	for i := 0; i < 10; i++ {
		b.Publish("demo-couple")
	}

	// A burst collapses into at least one pending signal, never a block.
	select {
	case <-s.ch:
	case <-time.After(time.Second):
		t.Fatal("no signal after burst")
	}
}

func TestBroker_UnsubscribeReleases(t *testing.T) {
	b := NewBroker()

	for i := 0; i < 100; i++ {
		s := b.subscribe("demo-couple")
		b.unsubscribe(s)
	}
	if got := b.subscriberCount("demo-couple"); got != 0 {
		t.Errorf("subscriberCount = %d after repeated subscribe/release, want 0", got)
	}
}
