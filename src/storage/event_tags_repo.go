package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

// EventTagsRepo stores positional tag rows.
type EventTagsRepo struct {
	pool *pgxpool.Pool
}

func NewEventTagsRepo(pool *pgxpool.Pool) *EventTagsRepo {
	return &EventTagsRepo{pool: pool}
}

// NormalizeTag keeps the first models.EventTagSlots fields of a tag at its
// original position. Missing fields stay nil, overflow is dropped and NUL
// bytes are stripped.
func NormalizeTag(eventID string, seq int, tag []string) models.EventTag {
	slots := make([]*string, models.EventTagSlots)
	for i := 0; i < len(tag) && i < models.EventTagSlots; i++ {
		v := textValue(tag[i])
		slots[i] = &v
	}
	return models.EventTag{
		EventID: eventID,
		Seq:     seq,
		Label:   slots[0],
		Field0:  slots[1],
		Field1:  slots[2],
		Field2:  slots[3],
		Field3:  slots[4],
	}
}

func (r *EventTagsRepo) InsertEventTag(ctx context.Context, tag models.EventTag) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO event_tag (event, seq, label, field0, field1, field2, field3)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event, seq) DO NOTHING
	`, tag.EventID, tag.Seq, tag.Label, tag.Field0, tag.Field1, tag.Field2, tag.Field3); err != nil {
		return fmt.Errorf("insert event tag %s/%d: %w", tag.EventID, tag.Seq, err)
	}
	return nil
}

func (r *EventTagsRepo) ListEventTags(ctx context.Context, eventID string) ([]models.EventTag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event, seq, label, field0, field1, field2, field3
		FROM event_tag
		WHERE event = $1
		ORDER BY seq ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query event tags: %w", err)
	}
	defer rows.Close()

	tags := make([]models.EventTag, 0)
	for rows.Next() {
		var tag models.EventTag
		if err := rows.Scan(&tag.EventID, &tag.Seq, &tag.Label, &tag.Field0, &tag.Field1, &tag.Field2, &tag.Field3); err != nil {
			return nil, fmt.Errorf("scan event tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event tags: %w", err)
	}
	return tags, nil
}
