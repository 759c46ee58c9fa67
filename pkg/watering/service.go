package watering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// Service records watering events and answers one-shot queries over the
// log. Recording deliberately applies no deduplication and no throttling:
// every tap is an event.
type Service struct {
	store  Store
	broker *Broker
}

// NewService creates a watering service.
func NewService(store Store, broker *Broker) *Service {
	return &Service{store: store, broker: broker}
}

// Record appends one watering event for the acting account. The timestamp
// is assigned by the store. clientID, when present, is echoed back on the
// stored event so clients can reconcile their optimistic copy. Local feed
// subscribers are woken directly; subscribers on other replicas are woken
// by the store notification.
func (s *Service) Record(ctx context.Context, coupleID string, userID uuid.UUID, clientID *uuid.UUID) (*domain.WateringEvent, error) {
	event, err := s.store.Append(ctx, coupleID, userID, clientID)
	if err != nil {
		return nil, fmt.Errorf("appending watering: %w", err)
	}
	s.broker.Publish(coupleID)
	return event, nil
}

// Today returns all events of a couple with timestamp >= since, oldest
// first.
func (s *Service) Today(ctx context.Context, coupleID string, since time.Time) ([]domain.WateringEvent, error) {
	return s.store.ListSince(ctx, coupleID, since)
}

// Latest returns the couple's most recent event, or nil if none exists.
func (s *Service) Latest(ctx context.Context, coupleID string) (*domain.WateringEvent, error) {
	return s.store.Latest(ctx, coupleID)
}
