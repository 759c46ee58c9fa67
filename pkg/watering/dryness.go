// Package watering implements the shared plant's domain core: the
// append-only watering event log, the dryness model, live feed
// subscriptions over the log, and the view-state projection that drives
// clients.
package watering

import "time"

// DefaultDryAfter is how long after the last watering the plant counts as
// dry again.
const DefaultDryAfter = 3 * time.Hour

// Model is the dryness state machine. It is pure bookkeeping over the most
// recent watering timestamp; dryness is always derived, never stored.
//
// With no watering known the plant is dry. A new watering, optimistic or
// confirmed, makes it fresh immediately. Fresh decays back to dry only by
// re-evaluating against a later clock, which callers do on a periodic tick.
type Model struct {
	dryAfter time.Duration
	last     *time.Time
}

// NewModel creates a dryness model with the given window. A non-positive
// window falls back to DefaultDryAfter.
func NewModel(dryAfter time.Duration) *Model {
	if dryAfter <= 0 {
		dryAfter = DefaultDryAfter
	}
	return &Model{dryAfter: dryAfter}
}

// Water records a watering at t. An older timestamp than the one already
// known is ignored, so confirmations arriving after newer events cannot
// move the clock backwards.
func (m *Model) Water(t time.Time) {
	if m.last == nil || t.After(*m.last) {
		m.last = &t
	}
}

// IsDry evaluates dryness at the given instant.
func (m *Model) IsDry(now time.Time) bool {
	if m.last == nil {
		return true
	}
	return now.Sub(*m.last) > m.dryAfter
}

// LastWatering returns the most recent watering timestamp known to the
// model, or nil if none.
func (m *Model) LastWatering() *time.Time {
	return m.last
}
