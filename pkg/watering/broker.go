package watering

import "sync"

// Broker is an in-process change signal fan-out, keyed by couple ID. A
// publish wakes every subscriber of that couple; the signal carries no
// data, subscribers re-query the store for a consistent snapshot.
// Signals coalesce: a slow subscriber sees at least one wake-up for any
// burst of publishes.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*signal]struct{}
}

type signal struct {
	coupleID string
	ch       chan struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*signal]struct{})}
}

// Publish wakes all subscribers of a couple without blocking.
func (b *Broker) Publish(coupleID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[coupleID] {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

func (b *Broker) subscribe(coupleID string) *signal {
	s := &signal{coupleID: coupleID, ch: make(chan struct{}, 1)}
	b.mu.Lock()
	if b.subs[coupleID] == nil {
		b.subs[coupleID] = make(map[*signal]struct{})
	}
	b.subs[coupleID][s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Broker) unsubscribe(s *signal) {
	b.mu.Lock()
	delete(b.subs[s.coupleID], s)
	if len(b.subs[s.coupleID]) == 0 {
		delete(b.subs, s.coupleID)
	}
	b.mu.Unlock()
}

// subscriberCount reports active subscribers for a couple. Used by tests
// to prove released subscriptions do not leak.
func (b *Broker) subscriberCount(coupleID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[coupleID])
}
