package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// WateringsChannel is the Postgres NOTIFY channel watering inserts are
// announced on. Feed listeners LISTEN here to learn about changes made by
// any replica.
const WateringsChannel = "waterings"

// WateringsRepository handles the append-only watering event log.
type WateringsRepository struct {
	db *sql.DB
}

// NewWateringsRepository creates a new waterings repository.
func NewWateringsRepository(db *sql.DB) *WateringsRepository {
	return &WateringsRepository{db: db}
}

// Append inserts one watering event. The timestamp is assigned by the
// database, and the insert NOTIFYs the waterings channel in the same
// statement so listeners on other connections wake up atomically with the
// commit.
func (r *WateringsRepository) Append(ctx context.Context, coupleID string, userID uuid.UUID, clientID *uuid.UUID) (*domain.WateringEvent, error) {
	query := `
		WITH ins AS (
			INSERT INTO waterings (couple_id, user_id, client_id)
			VALUES ($1, $2, $3)
			RETURNING id, couple_id, user_id, client_id, created_at
		)
		SELECT id, created_at, pg_notify($4, row_to_json(ins)::text)
		FROM ins
	`
	event := &domain.WateringEvent{
		CoupleID: coupleID,
		UserID:   userID,
		ClientID: clientID,
	}
	var ignored any
	err := r.db.QueryRowContext(ctx, query, coupleID, userID, clientID, WateringsChannel).
		Scan(&event.ID, &event.Timestamp, &ignored)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListSince returns all events for a couple with timestamp >= since,
// oldest first.
func (r *WateringsRepository) ListSince(ctx context.Context, coupleID string, since time.Time) ([]domain.WateringEvent, error) {
	query := `
		SELECT id, couple_id, user_id, client_id, created_at
		FROM waterings
		WHERE couple_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, coupleID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.WateringEvent
	for rows.Next() {
		var e domain.WateringEvent
		if err := rows.Scan(&e.ID, &e.CoupleID, &e.UserID, &e.ClientID, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Latest returns the most recent event for a couple, or nil if the log is
// empty.
func (r *WateringsRepository) Latest(ctx context.Context, coupleID string) (*domain.WateringEvent, error) {
	query := `
		SELECT id, couple_id, user_id, client_id, created_at
		FROM waterings
		WHERE couple_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	e := &domain.WateringEvent{}
	err := r.db.QueryRowContext(ctx, query, coupleID).Scan(
		&e.ID, &e.CoupleID, &e.UserID, &e.ClientID, &e.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
