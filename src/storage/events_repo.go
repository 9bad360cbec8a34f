package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type EventFilter struct {
	IDs     []string
	Author  string
	Kind    *int
	Since   *int64
	Until   *int64
	UntilID string
	Tag     string
	Limit   int
}

type EventsRepo struct {
	pool *pgxpool.Pool
}

func NewEventsRepo(pool *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{pool: pool}
}

// InsertEvent stores the event unless its id is already present. The
// returned flag reports whether a new row was written.
func (r *EventsRepo) InsertEvent(ctx context.Context, event models.Event) (bool, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal raw event: %w", err)
	}

	var ots *string
	if event.Ots != "" {
		v := textValue(event.Ots)
		ots = &v
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, raw, pubkey, created_at, kind, content, ots)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, string(raw), event.PubKey, event.CreatedAt, event.Kind, textValue(event.Content), ots)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventsRepo) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT raw FROM events WHERE id = $1`, eventID)

	var raw string
	if err := row.Scan(&raw); err != nil {
		return models.Event{}, err
	}
	return decodeRawEvent(raw)
}

func (r *EventsRepo) CountEvents(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (r *EventsRepo) QueryEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var builder strings.Builder
	args := make([]any, 0, 8)
	argIdx := 1

	builder.WriteString(`
		SELECT e.raw
		FROM events e
		WHERE 1=1
	`)

	if len(filter.IDs) > 0 {
		builder.WriteString(fmt.Sprintf("AND e.id = ANY($%d)\n", argIdx))
		args = append(args, filter.IDs)
		argIdx++
	}

	if filter.Author != "" {
		builder.WriteString(fmt.Sprintf("AND e.pubkey = $%d\n", argIdx))
		args = append(args, filter.Author)
		argIdx++
	}

	if filter.Kind != nil {
		builder.WriteString(fmt.Sprintf("AND e.kind = $%d\n", argIdx))
		args = append(args, *filter.Kind)
		argIdx++
	}

	if filter.Since != nil {
		builder.WriteString(fmt.Sprintf("AND e.created_at >= $%d\n", argIdx))
		args = append(args, *filter.Since)
		argIdx++
	}

	if filter.Until != nil {
		if strings.TrimSpace(filter.UntilID) != "" {
			builder.WriteString(fmt.Sprintf("AND (e.created_at < $%d OR (e.created_at = $%d AND e.id > $%d))\n", argIdx, argIdx, argIdx+1))
			args = append(args, *filter.Until, filter.UntilID)
			argIdx += 2
		} else {
			builder.WriteString(fmt.Sprintf("AND e.created_at <= $%d\n", argIdx))
			args = append(args, *filter.Until)
			argIdx++
		}
	}

	if filter.Tag != "" {
		label, value := parseTagFilter(filter.Tag)
		if label != "" {
			builder.WriteString(fmt.Sprintf(`AND EXISTS (
				SELECT 1 FROM event_tag et
				WHERE et.event = e.id AND et.label = $%d AND et.field0 = $%d
			)
`, argIdx, argIdx+1))
			args = append(args, label, value)
			argIdx += 2
		} else {
			builder.WriteString(fmt.Sprintf(`AND EXISTS (
				SELECT 1 FROM event_tag et
				WHERE et.event = e.id AND et.field0 = $%d
			)
`, argIdx))
			args = append(args, value)
			argIdx++
		}
	}

	builder.WriteString("ORDER BY e.created_at DESC, e.id ASC\n")
	builder.WriteString(fmt.Sprintf("LIMIT $%d", argIdx))
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		event, err := decodeRawEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

// textValue drops NUL bytes, which PostgreSQL TEXT cannot hold. The raw
// column keeps them JSON-escaped, so reads still return the exact event.
func textValue(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func textPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := textValue(*s)
	return &v
}

func decodeRawEvent(raw string) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return models.Event{}, fmt.Errorf("unmarshal raw event: %w", err)
	}
	return event, nil
}

func parseTagFilter(raw string) (string, string) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(raw)
}
