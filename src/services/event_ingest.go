package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/state"
	"nostr-ingest/src/storage"
)

var (
	ErrInvalidEvent  = errors.New("invalid event")
	ErrSerialization = errors.New("serialization failure")
	ErrPersistence   = errors.New("persistence failure")
	ErrClock         = errors.New("invalid clock reading")
	ErrPeople        = errors.New("person update failure")
)

// Origin tells the pipeline whether an event came from a relay or was
// authored locally and not yet published.
type Origin int

const (
	OriginRelay Origin = iota
	OriginLocal
)

func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "relay"
}

// Gateway is the durable store as seen by the pipeline. Every call is
// idempotent: inserts ignore existing keys, upserts keep the maximum
// timestamp, replaces overwrite.
type Gateway interface {
	InsertEvent(ctx context.Context, event models.Event) (bool, error)
	ReplaceEventSeen(ctx context.Context, seen models.EventSeen) error
	UpsertPersonRelayLastFetched(ctx context.Context, person, relay string, ts int64) error
	UpsertPersonRelayLastSuggestedByTag(ctx context.Context, person, relay string, ts int64) error
	InsertEventTag(ctx context.Context, tag models.EventTag) error
	InsertEventRelationship(ctx context.Context, rel models.EventRelationship) error
	InsertEventHashtag(ctx context.Context, row models.EventHashtag) error
}

// EventIngestService turns each incoming event into durable rows and
// shared in-memory state.
type EventIngestService struct {
	gateway  Gateway
	people   *PeopleService
	relays   *RelayService
	runtime  *state.Runtime
	resolver Resolver
	metrics  *lib.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewEventIngestService(
	gateway Gateway,
	people *PeopleService,
	relays *RelayService,
	runtime *state.Runtime,
	resolver Resolver,
	metrics *lib.Metrics,
	logger *slog.Logger,
) *EventIngestService {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	if resolver == nil {
		resolver = NewTagResolver()
	}
	return &EventIngestService{
		gateway:  gateway,
		people:   people,
		relays:   relays,
		runtime:  runtime,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger.With("component", "ingest"),
		now:      time.Now,
	}
}

// Process ingests one event. seenOn is the relay URL the event arrived
// from and is ignored for local events. On failure the remaining steps are
// skipped; steps already done stay done and are safe to repeat.
func (s *EventIngestService) Process(ctx context.Context, event models.Event, origin Origin, seenOn string) error {
	if err := s.process(ctx, event, origin, seenOn); err != nil {
		s.metrics.Inc("events_failed_total")
		s.logger.Warn("process event failed", "event_id", event.ID, "origin", origin.String(), "relay", seenOn, "error", err)
		return err
	}
	s.metrics.Inc("events_processed_total")
	return nil
}

func (s *EventIngestService) process(ctx context.Context, event models.Event, origin Origin, seenOn string) error {
	if err := ValidateShape(event); err != nil {
		return err
	}

	fromRelay := origin == OriginRelay
	if fromRelay && seenOn != "" {
		url, err := NormalizeRelayURL(seenOn)
		if err != nil {
			return err
		}
		seenOn = url
	} else {
		seenOn = ""
	}

	var now int64
	if fromRelay {
		var err error
		if now, err = s.unixNow(); err != nil {
			return err
		}
		inserted, err := s.gateway.InsertEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if !inserted {
			s.metrics.Inc("events_duplicate_total")
		}
	}

	if seenOn != "" {
		if err := s.recordSighting(ctx, event, seenOn, now); err != nil {
			return err
		}
	}

	s.runtime.Events.Put(event)

	if fromRelay {
		if err := s.storeTags(ctx, event, now); err != nil {
			return err
		}
	}

	claims := s.resolver.Resolve(event)
	if err := s.applyClaims(ctx, event, claims, fromRelay); err != nil {
		return err
	}

	if fromRelay {
		for _, hashtag := range claims.Hashtags {
			row := models.EventHashtag{EventID: event.ID, Hashtag: hashtag}
			if err := s.gateway.InsertEventHashtag(ctx, row); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
		}
	}

	if event.Kind == models.KindMetadata {
		var md models.Metadata
		if err := json.Unmarshal([]byte(event.Content), &md); err != nil {
			return fmt.Errorf("%w: metadata content of %s: %w", ErrSerialization, event.ID, err)
		}
		if err := s.people.UpdateMetadata(ctx, event.PubKey, md, event.CreatedAt); err != nil {
			return fmt.Errorf("%w: %w", ErrPeople, err)
		}
	}

	s.runtime.NewEvents.Push(event.ID)
	return nil
}

func (s *EventIngestService) recordSighting(ctx context.Context, event models.Event, relay string, now int64) error {
	seen := models.EventSeen{EventID: event.ID, Relay: relay, WhenSeen: now}
	if err := s.gateway.ReplaceEventSeen(ctx, seen); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := s.people.CreateIfMissing(ctx, event.PubKey); err != nil {
		return fmt.Errorf("%w: %w", ErrPeople, err)
	}
	if err := s.gateway.UpsertPersonRelayLastFetched(ctx, event.PubKey, relay, now); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// storeTags writes one positional row per tag and records relays that
// e and p tags recommend.
func (s *EventIngestService) storeTags(ctx context.Context, event models.Event, now int64) error {
	for seq, tag := range event.Tags {
		if err := s.gateway.InsertEventTag(ctx, storage.NormalizeTag(event.ID, seq, tag)); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		if len(tag) < 3 || (tag[0] != "e" && tag[0] != "p") {
			continue
		}
		url := tagRelayHint(tag)
		if url == "" {
			continue
		}
		isPerson := tag[0] == "p"
		if isPerson && !hex64.MatchString(tag[1]) {
			continue
		}
		if err := s.relays.Discover(ctx, url); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if !isPerson {
			continue
		}
		if err := s.gateway.UpsertPersonRelayLastSuggestedByTag(ctx, tag[1], url, now); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	return nil
}

func (s *EventIngestService) applyClaims(ctx context.Context, event models.Event, claims Claims, fromRelay bool) error {
	if claims.ReplyTo != nil {
		if err := s.relate(ctx, claims.ReplyTo.ID, event.ID, models.Reply{}, fromRelay); err != nil {
			return err
		}
		s.desire(claims.ReplyTo.ID, claims.ReplyTo.Hint)
	}

	for _, ancestor := range claims.Ancestors {
		s.desire(ancestor.ID, ancestor.Hint)
	}

	if claims.ReactsTo != nil {
		kind := models.Reaction{Content: claims.ReactsTo.Content}
		if err := s.relate(ctx, claims.ReactsTo.ID, event.ID, kind, fromRelay); err != nil {
			return err
		}
		s.desire(claims.ReactsTo.ID, claims.ReactsTo.Hint)
	}

	if claims.Deletes != nil {
		kind := models.Deletion{Reason: claims.Deletes.Reason}
		for _, id := range claims.Deletes.IDs {
			// deleted events are never desired
			if err := s.relate(ctx, id, event.ID, kind, fromRelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *EventIngestService) relate(ctx context.Context, original, referring string, kind models.RelationshipKind, fromRelay bool) error {
	edge := models.Relationship{Original: original, Referring: referring, Kind: kind}
	if fromRelay {
		if err := s.gateway.InsertEventRelationship(ctx, edge.Row()); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	if s.runtime.Relationships.Add(original, referring, kind) {
		s.metrics.Inc("relationships_added_total")
	}
	return nil
}

// desire enqueues id when it is not cached. The check and the enqueue are
// separate steps; a concurrent arrival can still cause a duplicate request,
// which the fetcher drops.
func (s *EventIngestService) desire(id, hint string) {
	if s.runtime.Events.Contains(id) {
		return
	}
	s.runtime.Desired.Enqueue(id, hint)
	s.metrics.Inc("desired_enqueued_total")
}

func (s *EventIngestService) unixNow() (int64, error) {
	now := s.now().Unix()
	if now <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrClock, now)
	}
	return now, nil
}
