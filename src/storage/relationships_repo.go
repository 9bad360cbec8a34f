package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type RelationshipsRepo struct {
	pool *pgxpool.Pool
}

func NewRelationshipsRepo(pool *pgxpool.Pool) *RelationshipsRepo {
	return &RelationshipsRepo{pool: pool}
}

func (r *RelationshipsRepo) InsertEventRelationship(ctx context.Context, rel models.EventRelationship) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO event_relationship (original, referring, relationship, content, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (original, referring, relationship) DO NOTHING
	`, rel.Original, rel.Referring, rel.Relationship, textPtr(rel.Content), textPtr(rel.Reason)); err != nil {
		return fmt.Errorf("insert event relationship: %w", err)
	}
	return nil
}

// ListEventRelationships returns the rows where original is the referenced event.
func (r *RelationshipsRepo) ListEventRelationships(ctx context.Context, original string) ([]models.EventRelationship, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT original, referring, relationship, content, reason
		FROM event_relationship
		WHERE original = $1
		ORDER BY referring ASC, relationship ASC
	`, original)
	if err != nil {
		return nil, fmt.Errorf("query event relationships: %w", err)
	}
	defer rows.Close()

	out := make([]models.EventRelationship, 0)
	for rows.Next() {
		var rel models.EventRelationship
		if err := rows.Scan(&rel.Original, &rel.Referring, &rel.Relationship, &rel.Content, &rel.Reason); err != nil {
			return nil, fmt.Errorf("scan event relationship: %w", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event relationships: %w", err)
	}
	return out, nil
}
