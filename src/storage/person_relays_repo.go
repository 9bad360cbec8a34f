package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type PersonRelaysRepo struct {
	pool *pgxpool.Pool
}

func NewPersonRelaysRepo(pool *pgxpool.Pool) *PersonRelaysRepo {
	return &PersonRelaysRepo{pool: pool}
}

// UpsertPersonRelayLastFetched raises last_fetched to ts; it never lowers it.
func (r *PersonRelaysRepo) UpsertPersonRelayLastFetched(ctx context.Context, person, relay string, ts int64) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO person_relay (person, relay, last_fetched)
		VALUES ($1, $2, $3)
		ON CONFLICT (person, relay) DO UPDATE
		SET last_fetched = GREATEST(person_relay.last_fetched, EXCLUDED.last_fetched)
	`, person, relay, ts); err != nil {
		return fmt.Errorf("upsert person_relay last_fetched: %w", err)
	}
	return nil
}

// UpsertPersonRelayLastSuggestedByTag raises last_suggested_bytag to ts.
func (r *PersonRelaysRepo) UpsertPersonRelayLastSuggestedByTag(ctx context.Context, person, relay string, ts int64) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO person_relay (person, relay, last_suggested_bytag)
		VALUES ($1, $2, $3)
		ON CONFLICT (person, relay) DO UPDATE
		SET last_suggested_bytag = GREATEST(person_relay.last_suggested_bytag, EXCLUDED.last_suggested_bytag)
	`, person, relay, ts); err != nil {
		return fmt.Errorf("upsert person_relay last_suggested_bytag: %w", err)
	}
	return nil
}

func (r *PersonRelaysRepo) GetPersonRelay(ctx context.Context, person, relay string) (models.PersonRelay, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT person, relay, last_fetched, last_suggested_bytag
		FROM person_relay
		WHERE person = $1 AND relay = $2
	`, person, relay)

	var pr models.PersonRelay
	if err := row.Scan(&pr.Person, &pr.Relay, &pr.LastFetched, &pr.LastSuggestedByTag); err != nil {
		return models.PersonRelay{}, err
	}
	return pr, nil
}
