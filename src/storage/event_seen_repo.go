package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type EventSeenRepo struct {
	pool *pgxpool.Pool
}

func NewEventSeenRepo(pool *pgxpool.Pool) *EventSeenRepo {
	return &EventSeenRepo{pool: pool}
}

// ReplaceEventSeen overwrites any previous sighting of the event on the relay.
func (r *EventSeenRepo) ReplaceEventSeen(ctx context.Context, seen models.EventSeen) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO event_seen (event, relay, when_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (event, relay) DO UPDATE
		SET when_seen = EXCLUDED.when_seen
	`, seen.EventID, seen.Relay, seen.WhenSeen); err != nil {
		return fmt.Errorf("replace event seen: %w", err)
	}
	return nil
}

func (r *EventSeenRepo) ListEventSeen(ctx context.Context, eventID string) ([]models.EventSeen, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event, relay, when_seen
		FROM event_seen
		WHERE event = $1
		ORDER BY relay ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query event seen: %w", err)
	}
	defer rows.Close()

	out := make([]models.EventSeen, 0)
	for rows.Next() {
		var seen models.EventSeen
		if err := rows.Scan(&seen.EventID, &seen.Relay, &seen.WhenSeen); err != nil {
			return nil, fmt.Errorf("scan event seen: %w", err)
		}
		out = append(out, seen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event seen: %w", err)
	}
	return out, nil
}
