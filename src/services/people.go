package services

import (
	"context"
	"log/slog"
	"sync"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
)

type PeopleStore interface {
	CreatePersonIfMissing(ctx context.Context, pubkey string) error
	UpdatePersonMetadata(ctx context.Context, pubkey string, md models.Metadata, ts int64) (bool, error)
	ListPeople(ctx context.Context) ([]models.Person, error)
}

// PeopleService keeps person records durable and mirrored in memory.
// Metadata only moves forward in time: an update older than, or as old as,
// the stored metadata is ignored.
type PeopleService struct {
	store  PeopleStore
	logger *slog.Logger

	mu     sync.RWMutex
	people map[string]models.Person
}

func NewPeopleService(store PeopleStore, logger *slog.Logger) *PeopleService {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &PeopleService{
		store:  store,
		logger: logger.With("component", "people"),
		people: make(map[string]models.Person),
	}
}

// Load fills the in-memory table from storage.
func (s *PeopleService) Load(ctx context.Context) error {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range people {
		s.people[p.PubKey] = p
	}
	return nil
}

// CreateIfMissing ensures a person record exists; it never overwrites.
func (s *PeopleService) CreateIfMissing(ctx context.Context, pubkey string) error {
	if err := s.store.CreatePersonIfMissing(ctx, pubkey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.people[pubkey]; !ok {
		s.people[pubkey] = models.Person{PubKey: pubkey}
	}
	return nil
}

// UpdateMetadata merges md into the person when createdAt is newer than the
// metadata already held.
func (s *PeopleService) UpdateMetadata(ctx context.Context, pubkey string, md models.Metadata, createdAt int64) error {
	if err := s.CreateIfMissing(ctx, pubkey); err != nil {
		return err
	}

	applied, err := s.store.UpdatePersonMetadata(ctx, pubkey, md, createdAt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	person := s.people[pubkey]
	person.PubKey = pubkey
	if person.MetadataAt != nil && *person.MetadataAt >= createdAt {
		s.logger.Debug("stale metadata ignored", "pubkey", pubkey, "created_at", createdAt, "stored_applied", applied)
		return nil
	}
	ts := createdAt
	person.Name = md.Name
	person.About = md.About
	person.Picture = md.Picture
	person.NIP05 = md.NIP05
	person.MetadataAt = &ts
	s.people[pubkey] = person
	return nil
}

func (s *PeopleService) Get(pubkey string) (models.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[pubkey]
	return p, ok
}
