package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/state"
)

var (
	ErrInvalidRelayURL = errors.New("invalid relay url")
	ErrUnknownRelay    = errors.New("unknown relay")
)

type RelayStore interface {
	InsertRelayIfAbsent(ctx context.Context, url string) error
	SaveRelay(ctx context.Context, relay models.Relay) error
	ListRelays(ctx context.Context) ([]models.Relay, error)
}

// RelayService manages relay bookkeeping. Local edits and connection
// counters only touch the in-memory table and mark the relay dirty;
// SaveRelays writes dirty relays back.
type RelayService struct {
	store  RelayStore
	table  *state.RelayTable
	logger *slog.Logger
}

func NewRelayService(store RelayStore, table *state.RelayTable, logger *slog.Logger) *RelayService {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &RelayService{store: store, table: table, logger: logger.With("component", "relays")}
}

func (s *RelayService) Load(ctx context.Context) error {
	relays, err := s.store.ListRelays(ctx)
	if err != nil {
		return err
	}
	s.table.Load(relays)
	return nil
}

// NormalizeRelayURL validates and normalizes a relay URL.
func NormalizeRelayURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !nostr.IsValidRelayURL(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelayURL, raw)
	}
	return nostr.NormalizeURL(raw), nil
}

// Add records a relay typed in by the local user.
func (s *RelayService) Add(ctx context.Context, raw string) (string, error) {
	url, err := NormalizeRelayURL(raw)
	if err != nil {
		return "", err
	}
	if err := s.store.InsertRelayIfAbsent(ctx, url); err != nil {
		return "", err
	}
	s.table.Learn(url)
	s.logger.Info("relay added", "relay", url)
	return url, nil
}

// Discover records a relay suggested by event tags.
func (s *RelayService) Discover(ctx context.Context, url string) error {
	if err := s.store.InsertRelayIfAbsent(ctx, url); err != nil {
		return err
	}
	if s.table.Learn(url) {
		s.logger.Debug("relay discovered", "relay", url)
	}
	return nil
}

func (s *RelayService) SetPost(url string, post bool) error {
	if !s.table.Update(url, func(r *models.Relay) { r.Post = post }) {
		return fmt.Errorf("%w: %s", ErrUnknownRelay, url)
	}
	return nil
}

func (s *RelayService) RecordSuccess(url string, at time.Time) {
	s.table.Update(url, func(r *models.Relay) {
		r.SuccessCount++
		r.LastConnectedAt = at.Unix()
		r.LastSuccessAt = at.Unix()
	})
}

func (s *RelayService) RecordFailure(url string, at time.Time) {
	s.table.Update(url, func(r *models.Relay) {
		r.FailureCount++
		r.LastConnectedAt = at.Unix()
	})
}

// SaveRelays persists every dirty relay and reports how many were written.
// A relay that fails to save stays dirty.
func (s *RelayService) SaveRelays(ctx context.Context) (int, error) {
	saved := 0
	for _, relay := range s.table.Dirty() {
		if err := s.store.SaveRelay(ctx, relay); err != nil {
			return saved, err
		}
		s.table.MarkClean(relay)
		saved++
	}
	if saved > 0 {
		s.logger.Info("relays saved", "count", saved)
	}
	return saved, nil
}

func (s *RelayService) List() []models.Relay {
	return s.table.List()
}

func (s *RelayService) PostRelays() []models.Relay {
	return s.table.PostRelays()
}

// URLs returns every known relay URL.
func (s *RelayService) URLs() []string {
	relays := s.table.List()
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		out = append(out, r.URL)
	}
	return out
}
