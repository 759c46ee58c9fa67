package domain

import (
	"time"

	"github.com/google/uuid"
)

// WateringEvent is one watering action appended to a couple's shared log.
// Timestamp is assigned by the store at insert time, never by the client
// clock. ClientID, when present, is the identity the acting client stamped
// on its optimistic copy of the event; the store echoes it back so the
// client can reconcile the confirmed event with the optimistic one.
type WateringEvent struct {
	ID        uuid.UUID  `json:"id"`
	CoupleID  string     `json:"couple_id"`
	UserID    uuid.UUID  `json:"user_id"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
