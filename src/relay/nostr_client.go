package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/services"
)

// ingestKinds are the kinds the pipeline interprets.
var ingestKinds = []int{
	models.KindMetadata,
	models.KindTextNote,
	models.KindDeletion,
	models.KindReaction,
	models.KindArticle,
}

type eventProcessor interface {
	Process(ctx context.Context, event models.Event, origin services.Origin, seenOn string) error
}

// NostrClient reads from remote relays through a go-nostr SimplePool. It
// implements services.Fetcher and feeds live subscriptions into the pipeline.
type NostrClient struct {
	pool         *nostr.SimplePool
	relays       *services.RelayService
	fetchTimeout time.Duration
	metrics      *lib.Metrics
	logger       *slog.Logger
}

func NewNostrClient(ctx context.Context, relays *services.RelayService, metrics *lib.Metrics, logger *slog.Logger) *NostrClient {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &NostrClient{
		pool:         nostr.NewSimplePool(ctx),
		relays:       relays,
		fetchTimeout: 10 * time.Second,
		metrics:      metrics,
		logger:       logger.With("component", "nostr_client"),
	}
}

// FetchEvent asks relays for a single event by id. A relay that answers
// nothing before the timeout counts as not found.
func (c *NostrClient) FetchEvent(ctx context.Context, id string, relays []string) (models.Event, string, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	result := c.pool.QuerySingle(fetchCtx, relays, nostr.Filter{IDs: []string{id}})
	if result == nil || result.Event == nil {
		if err := ctx.Err(); err != nil {
			return models.Event{}, "", false, err
		}
		return models.Event{}, "", false, nil
	}

	relayURL := ""
	if result.Relay != nil {
		relayURL = result.Relay.URL
	}
	return modelEventFromNostr(result.Event), relayURL, true, nil
}

// Subscribe streams events newer than since from urls into processor until
// ctx is cancelled. Processing failures are logged and skipped.
func (c *NostrClient) Subscribe(ctx context.Context, urls []string, since time.Time, processor eventProcessor) error {
	if len(urls) == 0 {
		c.logger.Warn("no relays to subscribe to")
		<-ctx.Done()
		return ctx.Err()
	}

	ts := nostr.Timestamp(since.Unix())
	filter := nostr.Filter{Kinds: ingestKinds, Since: &ts}
	c.logger.Info("subscribing", "relays", len(urls), "since", since.Unix())

	connected := make(map[string]struct{})
	for relayEvent := range c.pool.SubMany(ctx, urls, nostr.Filters{filter}) {
		if relayEvent.Event == nil || relayEvent.Relay == nil {
			continue
		}
		url := relayEvent.Relay.URL
		if _, ok := connected[url]; !ok {
			connected[url] = struct{}{}
			c.relays.RecordSuccess(url, time.Now())
		}

		c.metrics.Inc("subscription_events_total")
		event := modelEventFromNostr(relayEvent.Event)
		if err := processor.Process(ctx, event, services.OriginRelay, url); err != nil {
			c.logger.Debug("drop subscribed event", "event_id", event.ID, "relay", url, "error", err)
		}
	}
	return ctx.Err()
}
