package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/state"
)

// Fetcher retrieves a single event by id from any of the given relays.
// found is false when no relay returned it; relay is the URL that did.
type Fetcher interface {
	FetchEvent(ctx context.Context, id string, relays []string) (event models.Event, relay string, found bool, err error)
}

type eventProcessor interface {
	Process(ctx context.Context, event models.Event, origin Origin, seenOn string) error
}

// DesiredFetchService consumes the desired-event queue. The queue may hold
// the same id several times; ids are deduplicated per batch, against
// fetches already in flight, and against the event cache.
type DesiredFetchService struct {
	runtime   *state.Runtime
	fetcher   Fetcher
	processor eventProcessor
	relays    *RelayService
	throttle  *FetchThrottle
	fallback  []string
	inFlight  *xsync.MapOf[string, struct{}]
	metrics   *lib.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewDesiredFetchService(
	runtime *state.Runtime,
	fetcher Fetcher,
	processor eventProcessor,
	relays *RelayService,
	throttle *FetchThrottle,
	fallback []string,
	metrics *lib.Metrics,
	logger *slog.Logger,
) *DesiredFetchService {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &DesiredFetchService{
		runtime:   runtime,
		fetcher:   fetcher,
		processor: processor,
		relays:    relays,
		throttle:  throttle,
		fallback:  append([]string(nil), fallback...),
		inFlight:  xsync.NewMapOf[string, struct{}](),
		metrics:   metrics,
		logger:    logger.With("component", "desired_fetch"),
		now:       time.Now,
	}
}

type desiredTarget struct {
	id    string
	hints []string
}

// RunOnce drains the queue and fetches every still-missing id. Ids whose
// fetch errors, or that no relay could be asked for, are requeued.
func (s *DesiredFetchService) RunOnce(ctx context.Context) (int, error) {
	targets := groupDesired(s.runtime.Desired.Drain())
	fetched := 0

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			s.requeue(targets[i:])
			return fetched, err
		}
		if s.runtime.Events.Contains(target.id) {
			s.metrics.Inc("desired_fetch_skipped_total")
			continue
		}
		if _, loaded := s.inFlight.LoadOrStore(target.id, struct{}{}); loaded {
			s.metrics.Inc("desired_fetch_skipped_total")
			continue
		}

		ok := s.fetchOne(ctx, target)
		s.inFlight.Delete(target.id)
		if ok {
			fetched++
		}
	}
	return fetched, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *DesiredFetchService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("desired fetch round failed", "error", err)
			}
		}
	}
}

func (s *DesiredFetchService) fetchOne(ctx context.Context, target desiredTarget) bool {
	now := s.now()
	candidates := s.throttle.AllowAll(s.candidateRelays(target), now)
	if len(candidates) == 0 {
		s.metrics.Inc("desired_fetch_deferred_total")
		s.requeue([]desiredTarget{target})
		return false
	}

	event, relay, found, err := s.fetcher.FetchEvent(ctx, target.id, candidates)
	if err != nil {
		s.metrics.Inc("desired_fetch_errors_total")
		s.logger.Debug("fetch desired event failed", "event_id", target.id, "error", err)
		for _, url := range candidates {
			s.relays.RecordFailure(url, now)
		}
		s.requeue([]desiredTarget{target})
		return false
	}
	if !found {
		s.metrics.Inc("desired_fetch_missing_total")
		return false
	}
	if event.ID != target.id {
		s.metrics.Inc("desired_fetch_mismatch_total")
		s.logger.Warn("relay returned a different event", "want", target.id, "got", event.ID, "relay", relay)
		return false
	}

	s.relays.RecordSuccess(relay, now)
	if err := s.processor.Process(ctx, event, OriginRelay, relay); err != nil {
		s.metrics.Inc("desired_fetch_errors_total")
		// Malformed events fail the same way on every retry.
		if errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrSerialization) {
			s.logger.Warn("drop fetched event", "event_id", target.id, "relay", relay, "error", err)
			return false
		}
		s.logger.Warn("process fetched event failed", "event_id", target.id, "relay", relay, "error", err)
		s.requeue([]desiredTarget{target})
		return false
	}
	s.metrics.Inc("desired_fetch_found_total")
	return true
}

// candidateRelays lists the hints first, then the fallback relays.
func (s *DesiredFetchService) candidateRelays(target desiredTarget) []string {
	out := make([]string, 0, len(target.hints)+len(s.fallback))
	seen := make(map[string]struct{})
	for _, list := range [][]string{target.hints, s.fallback} {
		for _, url := range list {
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}
			out = append(out, url)
		}
	}
	return out
}

func (s *DesiredFetchService) requeue(targets []desiredTarget) {
	for _, target := range targets {
		if len(target.hints) == 0 {
			s.runtime.Desired.Enqueue(target.id, "")
			continue
		}
		for _, hint := range target.hints {
			s.runtime.Desired.Enqueue(target.id, hint)
		}
	}
}

// groupDesired collapses duplicate ids, keeping first-seen order and every
// distinct non-empty hint.
func groupDesired(batch []models.DesiredEvent) []desiredTarget {
	index := make(map[string]int, len(batch))
	out := make([]desiredTarget, 0, len(batch))
	for _, d := range batch {
		i, ok := index[d.ID]
		if !ok {
			i = len(out)
			index[d.ID] = i
			out = append(out, desiredTarget{id: d.ID})
		}
		if d.Hint != "" && !stringInSlice(d.Hint, out[i].hints) {
			out[i].hints = append(out[i].hints, d.Hint)
		}
	}
	return out
}
