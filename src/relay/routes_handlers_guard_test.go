package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"

	"nostr-ingest/src/lib"
	"nostr-ingest/src/models"
	"nostr-ingest/src/services"
	"nostr-ingest/src/state"
)

type captureEventStore struct {
	events   map[string]models.Event
	seen     []models.EventSeen
	hashtags map[string][]string
	lastTag  string
	lastLim  int
}

func (s *captureEventStore) GetEvent(_ context.Context, eventID string) (models.Event, error) {
	event, ok := s.events[eventID]
	if !ok {
		return models.Event{}, pgx.ErrNoRows
	}
	return event, nil
}

func (s *captureEventStore) ListEventSeen(_ context.Context, eventID string) ([]models.EventSeen, error) {
	out := make([]models.EventSeen, 0)
	for _, seen := range s.seen {
		if seen.EventID == eventID {
			out = append(out, seen)
		}
	}
	return out, nil
}

func (s *captureEventStore) EventIDsByHashtag(_ context.Context, hashtag string, limit int) ([]string, error) {
	s.lastTag = hashtag
	s.lastLim = limit
	return s.hashtags[hashtag], nil
}

type memoryRelayStore struct {
	saved []models.Relay
}

func (s *memoryRelayStore) InsertRelayIfAbsent(context.Context, string) error { return nil }

func (s *memoryRelayStore) SaveRelay(_ context.Context, relay models.Relay) error {
	s.saved = append(s.saved, relay)
	return nil
}

func (s *memoryRelayStore) ListRelays(context.Context) ([]models.Relay, error) { return nil, nil }

func newTestEventRoutes(rt *state.Runtime, store *captureEventStore) EventRoutes {
	return EventRoutes{
		QueryService: services.NewEventQueryService(rt, nil),
		Store:        store,
		Logger:       lib.DiscardLogger(),
	}
}

func TestEventRoutesHandlerGuards(t *testing.T) {
	routes := EventRoutes{}

	t.Run("handleEvents rejects unsupported method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		rec := httptest.NewRecorder()
		routes.handleEvents(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("handleEvents rejects invalid filter query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events?limit=bad", nil)
		rec := httptest.NewRecorder()
		routes.handleEvents(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("handleEventSubroutes rejects unsupported method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events/evt-1", nil)
		rec := httptest.NewRecorder()
		routes.handleEventSubroutes(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("handleEventSubroutes rejects empty path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events/", nil)
		rec := httptest.NewRecorder()
		routes.handleEventSubroutes(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("handleEventSubroutes rejects unknown subroute", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events/evt-1/unknown", nil)
		rec := httptest.NewRecorder()
		routes.handleEventSubroutes(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("handleNewEvents rejects GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/new-events", nil)
		rec := httptest.NewRecorder()
		routes.handleNewEvents(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("handleHashtag rejects deep path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/hashtags/a/b", nil)
		rec := httptest.NewRecorder()
		routes.handleHashtag(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestRelayRoutesHandlerGuards(t *testing.T) {
	routes := RelayRoutes{
		Relays: services.NewRelayService(&memoryRelayStore{}, state.NewRelayTable(), nil),
		Logger: lib.DiscardLogger(),
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		path    string
		body    string
		want    int
	}{
		{name: "relays rejects delete", handler: routes.handleRelays, method: http.MethodDelete, path: "/relays", want: http.StatusMethodNotAllowed},
		{name: "relays rejects malformed payload", handler: routes.handleRelays, method: http.MethodPost, path: "/relays", body: "{", want: http.StatusBadRequest},
		{name: "relays rejects invalid url", handler: routes.handleRelays, method: http.MethodPost, path: "/relays", body: `{"url":"https://x.example.com"}`, want: http.StatusBadRequest},
		{name: "post rejects get", handler: routes.handleSetPost, method: http.MethodGet, path: "/relays/post", want: http.StatusMethodNotAllowed},
		{name: "post rejects unknown relay", handler: routes.handleSetPost, method: http.MethodPut, path: "/relays/post", body: `{"url":"wss://unknown.example.com","post":true}`, want: http.StatusNotFound},
		{name: "save rejects get", handler: routes.handleSave, method: http.MethodGet, path: "/relays/save", want: http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			tc.handler(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestEventByIDFallsBackToStore(t *testing.T) {
	rt := state.New()
	rt.Events.Put(models.Event{ID: "cached", Kind: 1})
	store := &captureEventStore{events: map[string]models.Event{"stored": {ID: "stored", Kind: 1}}}
	mux := http.NewServeMux()
	RegisterEventRoutes(mux, newTestEventRoutes(rt, store))

	tests := []struct {
		path string
		want int
	}{
		{path: "/events/cached", want: http.StatusOK},
		{path: "/events/stored", want: http.StatusOK},
		{path: "/events/missing", want: http.StatusNotFound},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("GET %s status = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}
}

func TestRelationshipsRoute(t *testing.T) {
	rt := state.New()
	rt.Events.Put(models.Event{ID: "orig", PubKey: "alice", Kind: 1})
	rt.Events.Put(models.Event{ID: "del", PubKey: "alice", Kind: models.KindDeletion})
	rt.Relationships.Add("orig", "reply", models.Reply{})
	rt.Relationships.Add("orig", "del", models.Deletion{Reason: "spam"})
	mux := http.NewServeMux()
	RegisterEventRoutes(mux, newTestEventRoutes(rt, &captureEventStore{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/orig/relationships", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body relationshipsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode relationships: %v", err)
	}
	if len(body.Referencing) != 2 || len(body.Claims) != 0 || !body.Deleted {
		t.Fatalf("unexpected relationships body: %+v", body)
	}
	for _, rel := range body.Referencing {
		if rel.Relationship == models.RelationshipDeletion && (rel.Reason == nil || *rel.Reason != "spam") {
			t.Fatalf("expected deletion reason, got %+v", rel)
		}
	}
}

func TestDesiredAndNewEventsRoutes(t *testing.T) {
	rt := state.New()
	rt.Desired.Enqueue("want", "wss://hint.example.com")
	rt.NewEvents.Push("fresh")
	mux := http.NewServeMux()
	RegisterEventRoutes(mux, newTestEventRoutes(rt, &captureEventStore{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/desired", nil))
	var desired []models.DesiredEvent
	if err := json.NewDecoder(rec.Body).Decode(&desired); err != nil {
		t.Fatalf("decode desired: %v", err)
	}
	if len(desired) != 1 || desired[0].ID != "want" || desired[0].Hint != "wss://hint.example.com" {
		t.Fatalf("unexpected desired body: %+v", desired)
	}

	for i, want := range [][]string{{"fresh"}, {}} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/new-events", nil))
		var ids []string
		if err := json.NewDecoder(rec.Body).Decode(&ids); err != nil {
			t.Fatalf("decode new events #%d: %v", i, err)
		}
		if len(ids) != len(want) || (len(want) == 1 && ids[0] != want[0]) {
			t.Fatalf("drain #%d = %v, want %v", i, ids, want)
		}
	}
}

func TestHashtagAndSeenRoutes(t *testing.T) {
	store := &captureEventStore{
		hashtags: map[string][]string{"nostr": {"a", "b"}},
		seen:     []models.EventSeen{{EventID: "a", Relay: "wss://r.example.com", WhenSeen: 5}},
	}
	mux := http.NewServeMux()
	RegisterEventRoutes(mux, newTestEventRoutes(state.New(), store))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hashtags/nostr?limit=5", nil))
	var ids []string
	if err := json.NewDecoder(rec.Body).Decode(&ids); err != nil {
		t.Fatalf("decode hashtag ids: %v", err)
	}
	if len(ids) != 2 || store.lastTag != "nostr" || store.lastLim != 5 {
		t.Fatalf("unexpected hashtag lookup: ids=%v tag=%q limit=%d", ids, store.lastTag, store.lastLim)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/a/seen", nil))
	var seen []models.EventSeen
	if err := json.NewDecoder(rec.Body).Decode(&seen); err != nil {
		t.Fatalf("decode seen: %v", err)
	}
	if len(seen) != 1 || seen[0].Relay != "wss://r.example.com" {
		t.Fatalf("unexpected seen body: %+v", seen)
	}
}

func TestRelayRoutesAddPostAndSave(t *testing.T) {
	store := &memoryRelayStore{}
	relays := services.NewRelayService(store, state.NewRelayTable(), nil)
	mux := http.NewServeMux()
	RegisterRelayRoutes(mux, RelayRoutes{Relays: relays, Logger: lib.DiscardLogger()})

	steps := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{method: http.MethodPost, path: "/relays", body: `{"url":"wss://relay.example.com"}`, want: http.StatusCreated},
		{method: http.MethodPut, path: "/relays/post", body: `{"url":"wss://relay.example.com","post":true}`, want: http.StatusOK},
		{method: http.MethodPost, path: "/relays/save", want: http.StatusOK},
	}
	for _, step := range steps {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(step.method, step.path, bytes.NewBufferString(step.body)))
		if rec.Code != step.want {
			t.Fatalf("%s %s status = %d, want %d (%s)", step.method, step.path, rec.Code, step.want, rec.Body.String())
		}
	}

	if len(store.saved) != 1 || !store.saved[0].Post {
		t.Fatalf("expected saved post relay, got %+v", store.saved)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relays?post=true", nil))
	var listed []models.Relay
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode relays: %v", err)
	}
	if len(listed) != 1 || listed[0].URL != "wss://relay.example.com" || listed[0].Dirty {
		t.Fatalf("unexpected post relays: %+v", listed)
	}
}

func TestPeopleRoute(t *testing.T) {
	people := services.NewPeopleService(nil, nil)
	mux := http.NewServeMux()
	RegisterPeopleRoutes(mux, PeopleRoutes{People: people})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/people/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
