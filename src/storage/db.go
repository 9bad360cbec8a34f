package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"nostr-ingest/src/lib"
)

func NewPool(ctx context.Context, cfg lib.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create DB pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	return pool, nil
}

// ApplyMigrations executes every .sql file under dir in lexical order.
// All statements are written to be re-runnable.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	files := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".sql" {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migration files: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path, err)
		}
	}
	return nil
}

// Gateway bundles the repos the ingestion pipeline writes through.
type Gateway struct {
	*EventsRepo
	*EventTagsRepo
	*EventSeenRepo
	*RelationshipsRepo
	*HashtagsRepo
	*RelaysRepo
	*PeopleRepo
	*PersonRelaysRepo
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{
		EventsRepo:        NewEventsRepo(pool),
		EventTagsRepo:     NewEventTagsRepo(pool),
		EventSeenRepo:     NewEventSeenRepo(pool),
		RelationshipsRepo: NewRelationshipsRepo(pool),
		HashtagsRepo:      NewHashtagsRepo(pool),
		RelaysRepo:        NewRelaysRepo(pool),
		PeopleRepo:        NewPeopleRepo(pool),
		PersonRelaysRepo:  NewPersonRelaysRepo(pool),
	}
}
