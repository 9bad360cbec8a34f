package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/models"
)

type PeopleRepo struct {
	pool *pgxpool.Pool
}

func NewPeopleRepo(pool *pgxpool.Pool) *PeopleRepo {
	return &PeopleRepo{pool: pool}
}

func (r *PeopleRepo) CreatePersonIfMissing(ctx context.Context, pubkey string) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO person (pubkey)
		VALUES ($1)
		ON CONFLICT (pubkey) DO NOTHING
	`, pubkey); err != nil {
		return fmt.Errorf("create person %s: %w", pubkey, err)
	}
	return nil
}

// UpdatePersonMetadata applies md only when ts is newer than the stored
// metadata_at. It reports whether the row changed.
func (r *PeopleRepo) UpdatePersonMetadata(ctx context.Context, pubkey string, md models.Metadata, ts int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE person
		SET name = $2, about = $3, picture = $4, nip05 = $5, metadata_at = $6
		WHERE pubkey = $1
		  AND (metadata_at IS NULL OR metadata_at < $6)
	`, pubkey, md.Name, md.About, md.Picture, md.NIP05, ts)
	if err != nil {
		return false, fmt.Errorf("update person metadata %s: %w", pubkey, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PeopleRepo) GetPerson(ctx context.Context, pubkey string) (models.Person, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT pubkey, COALESCE(name, ''), COALESCE(about, ''), COALESCE(picture, ''), COALESCE(nip05, ''), metadata_at
		FROM person
		WHERE pubkey = $1
	`, pubkey)

	var p models.Person
	if err := row.Scan(&p.PubKey, &p.Name, &p.About, &p.Picture, &p.NIP05, &p.MetadataAt); err != nil {
		return models.Person{}, err
	}
	return p, nil
}

func (r *PeopleRepo) ListPeople(ctx context.Context) ([]models.Person, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pubkey, COALESCE(name, ''), COALESCE(about, ''), COALESCE(picture, ''), COALESCE(nip05, ''), metadata_at
		FROM person
		ORDER BY pubkey ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	out := make([]models.Person, 0)
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.PubKey, &p.Name, &p.About, &p.Picture, &p.NIP05, &p.MetadataAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}
