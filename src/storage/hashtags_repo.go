package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type HashtagsRepo struct {
	pool *pgxpool.Pool
}

func NewHashtagsRepo(pool *pgxpool.Pool) *HashtagsRepo {
	return &HashtagsRepo{pool: pool}
}

func (r *HashtagsRepo) InsertEventHashtag(ctx context.Context, row models.EventHashtag) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO event_hashtag (event, hashtag)
		VALUES ($1, $2)
		ON CONFLICT (event, hashtag) DO NOTHING
	`, row.EventID, textValue(row.Hashtag)); err != nil {
		return fmt.Errorf("insert event hashtag: %w", err)
	}
	return nil
}

func (r *HashtagsRepo) EventIDsByHashtag(ctx context.Context, hashtag string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT h.event
		FROM event_hashtag h
		JOIN events e ON e.id = h.event
		WHERE h.hashtag = $1
		ORDER BY e.created_at DESC, e.id ASC
		LIMIT $2
	`, hashtag, limit)
	if err != nil {
		return nil, fmt.Errorf("query hashtag events: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hashtag event: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hashtag events: %w", err)
	}
	return ids, nil
}
