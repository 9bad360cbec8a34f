package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type RelaysRepo struct {
	pool *pgxpool.Pool
}

func NewRelaysRepo(pool *pgxpool.Pool) *RelaysRepo {
	return &RelaysRepo{pool: pool}
}

// InsertRelayIfAbsent records a relay URL, leaving an existing row untouched.
func (r *RelaysRepo) InsertRelayIfAbsent(ctx context.Context, url string) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO relay (url)
		VALUES ($1)
		ON CONFLICT (url) DO NOTHING
	`, url); err != nil {
		return fmt.Errorf("insert relay %s: %w", url, err)
	}
	return nil
}

// SaveRelay writes the full relay record, overwriting the stored one.
func (r *RelaysRepo) SaveRelay(ctx context.Context, relay models.Relay) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO relay (url, success_count, failure_count, last_connected_at, last_success_at, post)
		VALUES ($1, $2, $3, NULLIF($4::BIGINT, 0), NULLIF($5::BIGINT, 0), $6)
		ON CONFLICT (url) DO UPDATE
		SET success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			last_connected_at = EXCLUDED.last_connected_at,
			last_success_at = EXCLUDED.last_success_at,
			post = EXCLUDED.post
	`, relay.URL, int64(relay.SuccessCount), int64(relay.FailureCount), relay.LastConnectedAt, relay.LastSuccessAt, relay.Post); err != nil {
		return fmt.Errorf("save relay %s: %w", relay.URL, err)
	}
	return nil
}

func (r *RelaysRepo) ListRelays(ctx context.Context) ([]models.Relay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT url, success_count, failure_count,
			COALESCE(last_connected_at, 0), COALESCE(last_success_at, 0), post
		FROM relay
		ORDER BY url ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query relays: %w", err)
	}
	defer rows.Close()

	out := make([]models.Relay, 0)
	for rows.Next() {
		var relay models.Relay
		var success, failure int64
		if err := rows.Scan(&relay.URL, &success, &failure, &relay.LastConnectedAt, &relay.LastSuccessAt, &relay.Post); err != nil {
			return nil, fmt.Errorf("scan relay: %w", err)
		}
		relay.SuccessCount = uint64(success)
		relay.FailureCount = uint64(failure)
		out = append(out, relay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relays: %w", err)
	}
	return out, nil
}
