package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fiatjaf/eventstore"
	"github.com/fiatjaf/khatru"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/services"
	"nostr-ingest/src/state"
	"nostr-ingest/src/storage"
)

const migrationsDir = "src/storage/migrations"

// Server wires the ingestion pipeline, its background workers and the
// HTTP/websocket surface.
type Server struct {
	cfg        lib.Config
	logger     *slog.Logger
	metrics    *lib.Metrics
	db         *pgxpool.Pool
	httpServer *http.Server
	relays     *services.RelayService
	ingest     *services.EventIngestService
	fetch      *services.DesiredFetchService
	client     *NostrClient

	workerCtx context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewServer(ctx context.Context, cfg lib.Config) (*Server, error) {
	logger := lib.NewLogger(cfg.LogLevel)
	metrics := lib.NewMetrics()

	db, err := storage.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := storage.ApplyMigrations(ctx, db, migrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	gateway := storage.NewGateway(db)
	runtime := state.New()

	people := services.NewPeopleService(gateway, logger)
	if err := people.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	relays := services.NewRelayService(gateway, runtime.Relays, logger)
	if err := relays.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	for _, url := range cfg.SeedRelays {
		if err := relays.Discover(ctx, url); err != nil {
			db.Close()
			return nil, err
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	client := NewNostrClient(workerCtx, relays, metrics, logger)
	ingestService := services.NewEventIngestService(gateway, people, relays, runtime, services.NewTagResolver(), metrics, logger)
	queryService := services.NewEventQueryService(runtime, gateway)
	fetchService := services.NewDesiredFetchService(
		runtime,
		client,
		ingestService,
		relays,
		services.NewFetchThrottle(cfg.FetchBurst, cfg.FetchPerMinute),
		cfg.SeedRelays,
		metrics,
		logger,
	)

	khatruRelay := khatru.NewRelay()
	wireKhatruHooks(khatruRelay, ingestService, queryService)

	mux := khatruRelay.Router()
	RegisterEventRoutes(mux, EventRoutes{
		QueryService: queryService,
		Store:        gateway,
		Logger:       logger,
	})
	RegisterRelayRoutes(mux, RelayRoutes{
		Relays: relays,
		Logger: logger,
	})
	RegisterPeopleRoutes(mux, PeopleRoutes{People: people})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           khatruRelay,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		db:         db,
		httpServer: httpServer,
		relays:     relays,
		ingest:     ingestService,
		fetch:      fetchService,
		client:     client,
		workerCtx:  workerCtx,
		cancel:     cancel,
	}, nil
}

// Start launches the relay subscription and the desired-event fetch loop,
// then serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		since := time.Now().Add(-s.cfg.SubscribeLookback)
		if err := s.client.Subscribe(s.workerCtx, s.relays.URLs(), since, s.ingest); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("subscription stopped", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.fetch.Run(s.workerCtx, s.cfg.DesiredFetchInterval); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("desired fetch loop stopped", "error", err)
		}
	}()

	s.logger.Info("ingest server starting", "addr", s.cfg.HTTPAddr, "relays", len(s.relays.URLs()))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the workers, saves dirty relays and closes the HTTP server
// and database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.db.Close()

	s.cancel()
	s.wg.Wait()

	if saved, err := s.relays.SaveRelays(ctx); err != nil {
		s.logger.Error("save relays on shutdown", "saved", saved, "error", err)
	}
	return s.httpServer.Shutdown(ctx)
}

func wireKhatruHooks(
	relay *khatru.Relay,
	ingestService *services.EventIngestService,
	queryService *services.EventQueryService,
) {
	relay.StoreEvent = append(relay.StoreEvent, func(ctx context.Context, event *nostr.Event) error {
		if _, ok := queryService.Event(event.ID); ok {
			return eventstore.ErrDupEvent
		}
		return ingestService.Process(ctx, modelEventFromNostr(event), services.OriginLocal, "")
	})

	relay.QueryEvents = append(relay.QueryEvents, func(ctx context.Context, filter nostr.Filter) (chan *nostr.Event, error) {
		events, err := queryService.QueryNostrFilter(ctx, filter)
		if err != nil {
			return nil, err
		}

		ch := make(chan *nostr.Event, len(events))
		for _, event := range events {
			ch <- nostrEventFromModel(event)
		}
		close(ch)
		return ch, nil
	})
}

func modelEventFromNostr(event *nostr.Event) models.Event {
	tags := make([][]string, 0, len(event.Tags))
	for _, tag := range event.Tags {
		tags = append(tags, append([]string(nil), tag...))
	}
	return models.Event{
		ID:        event.ID,
		PubKey:    event.PubKey,
		CreatedAt: int64(event.CreatedAt),
		Kind:      event.Kind,
		Tags:      tags,
		Content:   event.Content,
		Sig:       event.Sig,
	}
}

func nostrEventFromModel(event models.Event) *nostr.Event {
	tags := make(nostr.Tags, 0, len(event.Tags))
	for _, tag := range event.Tags {
		tags = append(tags, append(nostr.Tag(nil), tag...))
	}
	return &nostr.Event{
		ID:        event.ID,
		PubKey:    event.PubKey,
		CreatedAt: nostr.Timestamp(event.CreatedAt),
		Kind:      event.Kind,
		Tags:      tags,
		Content:   event.Content,
		Sig:       event.Sig,
	}
}
