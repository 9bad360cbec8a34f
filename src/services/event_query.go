package services

import (
	"context"
	"sort"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/models"
	"nostr-ingest/src/state"
	"nostr-ingest/src/storage"
)

type eventQueryRepo interface {
	QueryEvents(ctx context.Context, filter storage.EventFilter) ([]models.Event, error)
}

// EventQueryService is the read side over the shared runtime state, with
// durable storage behind it for REQ-style queries.
type EventQueryService struct {
	runtime *state.Runtime
	repo    eventQueryRepo
}

func NewEventQueryService(runtime *state.Runtime, repo eventQueryRepo) *EventQueryService {
	return &EventQueryService{runtime: runtime, repo: repo}
}

func (s *EventQueryService) Event(id string) (models.Event, bool) {
	return s.runtime.Events.Get(id)
}

// Referencing returns the replies, reactions and deletions pointing at id.
func (s *EventQueryService) Referencing(id string) []models.Relationship {
	return s.runtime.Relationships.Referencing(id)
}

// Claims returns the relationships id itself asserts.
func (s *EventQueryService) Claims(id string) []models.Relationship {
	return s.runtime.Relationships.Claims(id)
}

func (s *EventQueryService) Desired() []models.DesiredEvent {
	return s.runtime.Desired.Snapshot()
}

// DrainNewEvents hands the ids processed since the last drain to the caller.
func (s *EventQueryService) DrainNewEvents() []string {
	return s.runtime.NewEvents.Drain()
}

// IsDeleted reports whether a deletion claim targets id from its own author.
// Deletion is advisory; the event stays cached.
func (s *EventQueryService) IsDeleted(id string) bool {
	original, ok := s.runtime.Events.Get(id)
	if !ok {
		return false
	}
	for _, rel := range s.runtime.Relationships.Referencing(id) {
		if _, isDeletion := rel.Kind.(models.Deletion); !isDeletion {
			continue
		}
		deleter, ok := s.runtime.Events.Get(rel.Referring)
		if ok && deleter.PubKey == original.PubKey {
			return true
		}
	}
	return false
}

// QueryNostrFilter answers a REQ filter from the cache and, when a repo is
// configured, from durable storage. Results are newest first.
func (s *EventQueryService) QueryNostrFilter(ctx context.Context, filter nostr.Filter) ([]models.Event, error) {
	targetLimit := int(filter.Limit)
	if targetLimit <= 0 {
		targetLimit = 100
	}

	seen := make(map[string]struct{}, targetLimit)
	merged := s.runtime.Events.Filter(func(event models.Event) bool {
		return matchesNostrFilter(event, filter)
	})
	for _, event := range merged {
		seen[event.ID] = struct{}{}
	}

	if s.repo != nil {
		stored, err := s.queryStored(ctx, filter, targetLimit)
		if err != nil {
			return nil, err
		}
		for _, event := range stored {
			if _, exists := seen[event.ID]; exists {
				continue
			}
			seen[event.ID] = struct{}{}
			merged = append(merged, event)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt > merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > targetLimit {
		merged = merged[:targetLimit]
	}
	return merged, nil
}

// queryStored pages through storage with a coarse filter, applying the full
// filter in memory until targetLimit matches are found.
func (s *EventQueryService) queryStored(ctx context.Context, filter nostr.Filter, targetLimit int) ([]models.Event, error) {
	coarse := storage.EventFilter{
		IDs:   filter.IDs,
		Limit: 500,
	}
	if len(filter.Authors) == 1 {
		coarse.Author = filter.Authors[0]
	}
	if len(filter.Kinds) == 1 {
		kind := filter.Kinds[0]
		coarse.Kind = &kind
	}
	if filter.Since != nil {
		since := int64(*filter.Since)
		coarse.Since = &since
	}
	// Storage matches one tag value; wider tag filters are applied in memory.
	if len(filter.Tags) == 1 {
		for tagKey, tagValues := range filter.Tags {
			if len(tagValues) == 1 {
				coarse.Tag = strings.TrimPrefix(tagKey, "#") + ":" + tagValues[0]
			}
		}
	}

	var untilCursor *int64
	if filter.Until != nil {
		u := int64(*filter.Until)
		untilCursor = &u
	}
	untilIDCursor := ""

	filtered := make([]models.Event, 0, targetLimit)
	seen := make(map[string]struct{}, targetLimit)
	for len(filtered) < targetLimit {
		query := coarse
		if untilCursor != nil {
			u := *untilCursor
			query.Until = &u
			query.UntilID = untilIDCursor
		}

		events, err := s.repo.QueryEvents(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}

		for _, event := range events {
			if _, exists := seen[event.ID]; exists {
				continue
			}
			seen[event.ID] = struct{}{}
			if matchesNostrFilter(event, filter) {
				filtered = append(filtered, event)
				if len(filtered) >= targetLimit {
					break
				}
			}
		}
		if len(filtered) >= targetLimit || len(events) < query.Limit {
			break
		}

		oldest := events[len(events)-1]
		if untilCursor != nil && oldest.CreatedAt == *untilCursor && oldest.ID == untilIDCursor {
			break
		}
		nextUntil := oldest.CreatedAt
		untilCursor = &nextUntil
		untilIDCursor = oldest.ID
	}

	return filtered, nil
}

func matchesNostrFilter(event models.Event, filter nostr.Filter) bool {
	if len(filter.IDs) > 0 && !stringInSlice(event.ID, filter.IDs) {
		return false
	}
	if len(filter.Authors) > 0 && !stringInSlice(event.PubKey, filter.Authors) {
		return false
	}
	if len(filter.Kinds) > 0 && !intInSlice(event.Kind, filter.Kinds) {
		return false
	}
	if filter.Since != nil && event.CreatedAt < int64(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.CreatedAt > int64(*filter.Until) {
		return false
	}

	for key, values := range filter.Tags {
		key = strings.TrimPrefix(key, "#")
		if !eventHasAnyTagValue(event.Tags, key, values) {
			return false
		}
	}
	return true
}

func eventHasAnyTagValue(tags [][]string, tagName string, values []string) bool {
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != tagName {
			continue
		}
		for _, value := range values {
			if tag[1] == value {
				return true
			}
		}
	}
	return false
}

func stringInSlice(value string, values []string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

func intInSlice(value int, values []int) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
