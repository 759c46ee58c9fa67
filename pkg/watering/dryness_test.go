package watering

import (
	"testing"
	"time"
)

func TestModel_NoEventIsDry(t *testing.T) {
	m := NewModel(DefaultDryAfter)
	if !m.IsDry(time.Now()) {
		t.Error("model with no watering must be dry")
	}
}

func TestModel_Boundary(t *testing.T) {
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		wantDry bool
	}{
		{"just watered", 0, false},
		{"2h59m fresh", 2*time.Hour + 59*time.Minute, false},
		{"exactly 3h still fresh", 3 * time.Hour, false},
		{"3h01m dry", 3*time.Hour + time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(DefaultDryAfter)
			m.Water(base)
			if got := m.IsDry(base.Add(tt.elapsed)); got != tt.wantDry {
				t.Errorf("IsDry after %v = %v, want %v", tt.elapsed, got, tt.wantDry)
			}
		})
	}
}

func TestModel_WaterTurnsFreshImmediately(t *testing.T) {
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	m := NewModel(DefaultDryAfter)
	m.Water(base)

	later := base.Add(4 * time.Hour)
	if !m.IsDry(later) {
		t.Fatal("plant should be dry after 4h")
	}
	m.Water(later)
	if m.IsDry(later) {
		t.Error("watering must turn the plant fresh immediately")
	}
}

func TestModel_IgnoresOlderTimestamps(t *testing.T) {
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	m := NewModel(DefaultDryAfter)
	m.Water(base)
	m.Water(base.Add(-2 * time.Hour))

	if got := m.LastWatering(); got == nil || !got.Equal(base) {
		t.Errorf("LastWatering = %v, want %v", got, base)
	}
}

func TestNewModel_DefaultWindow(t *testing.T) {
	m := NewModel(0)
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	m.Water(base)
	if m.IsDry(base.Add(2 * time.Hour)) {
		t.Error("zero window must fall back to the 3h default")
	}
	if !m.IsDry(base.Add(4 * time.Hour)) {
		t.Error("zero window must fall back to the 3h default")
	}
}
