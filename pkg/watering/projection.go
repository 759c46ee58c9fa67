package watering

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// View is one immutable snapshot of everything a client renders: the two
// today counters, the most recent event, and dryness.
type View struct {
	MyToday      int                   `json:"my_today"`
	PartnerToday int                   `json:"partner_today"`
	MostRecent   *domain.WateringEvent `json:"most_recent,omitempty"`
	Dry          bool                  `json:"dry"`
}

// Projection folds feed snapshots, optimistic local events, and clock
// ticks into Views for one account's perspective on a couple.
//
// Counters are never incremented in place. Every snapshot recomputes them
// from the full known event set: the last confirmed today-snapshot merged
// with pending optimistic events. A pending event whose client ID appears
// on a confirmed row is dropped from the pending set, so a confirmation
// arriving after its optimistic copy never counts twice.
type Projection struct {
	self     uuid.UUID
	dryAfter time.Duration
	model    *Model

	mu        sync.Mutex
	confirmed []domain.WateringEvent
	pending   map[uuid.UUID]domain.WateringEvent
	latest    *domain.WateringEvent
}

// NewProjection creates a projection for one account with the given
// dryness window.
func NewProjection(self uuid.UUID, dryAfter time.Duration) *Projection {
	if dryAfter <= 0 {
		dryAfter = DefaultDryAfter
	}
	return &Projection{
		self:     self,
		dryAfter: dryAfter,
		model:    NewModel(dryAfter),
		pending:  make(map[uuid.UUID]domain.WateringEvent),
	}
}

// ApplyToday replaces the confirmed today-event set from a feed snapshot,
// retiring any pending optimistic event the snapshot confirms.
func (p *Projection) ApplyToday(events []domain.WateringEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = events
	for _, e := range events {
		if e.ClientID != nil {
			delete(p.pending, *e.ClientID)
		}
		p.model.Water(e.Timestamp)
	}
}

// ApplyLatest records the couple's most recent confirmed event. A nil
// event (empty log) leaves the dryness clock untouched.
func (p *Projection) ApplyLatest(event *domain.WateringEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = event
	if event != nil {
		p.model.Water(event.Timestamp)
	}
}

// Optimistic records a locally stamped watering by this account before the
// store confirms it. The plant turns fresh immediately.
func (p *Projection) Optimistic(clientID uuid.UUID, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[clientID] = domain.WateringEvent{
		UserID:    p.self,
		ClientID:  &clientID,
		Timestamp: now,
	}
	p.model.Water(now)
}

// Abandon drops a pending optimistic event whose store write failed, so
// it stops inflating the counters. The dryness clock is rebuilt from what
// remains: if the abandoned event was the only watering, the plant goes
// back to dry.
func (p *Projection) Abandon(clientID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[clientID]; !ok {
		return
	}
	delete(p.pending, clientID)
	p.rebuildModel()
}

func (p *Projection) rebuildModel() {
	m := NewModel(p.dryAfter)
	for _, e := range p.confirmed {
		m.Water(e.Timestamp)
	}
	for _, e := range p.pending {
		m.Water(e.Timestamp)
	}
	if p.latest != nil {
		m.Water(p.latest.Timestamp)
	}
	p.model = m
}

// Snapshot computes the view at the given instant. Pending optimistic
// events that were never confirmed within the dryness window are expired
// here, so a lost write cannot inflate the counters forever.
func (p *Projection) Snapshot(now time.Time) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.pending {
		if now.Sub(e.Timestamp) > p.dryAfter {
			delete(p.pending, id)
		}
	}

	view := View{
		MostRecent: p.latest,
		Dry:        p.model.IsDry(now),
	}
	for _, e := range p.confirmed {
		if e.UserID == p.self {
			view.MyToday++
		} else {
			view.PartnerToday++
		}
	}
	for _, e := range p.pending {
		if e.UserID == p.self {
			view.MyToday++
		} else {
			view.PartnerToday++
		}
	}
	return view
}
