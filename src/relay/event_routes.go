package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/models"
	"nostr-ingest/src/services"
)

// eventStore is the durable read side behind the event routes.
type eventStore interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	ListEventSeen(ctx context.Context, eventID string) ([]models.EventSeen, error)
	EventIDsByHashtag(ctx context.Context, hashtag string, limit int) ([]string, error)
}

type EventRoutes struct {
	QueryService *services.EventQueryService
	Store        eventStore
	Logger       *slog.Logger
}

type relationshipsResponse struct {
	Referencing []models.EventRelationship `json:"referencing"`
	Claims      []models.EventRelationship `json:"claims"`
	Deleted     bool                       `json:"deleted"`
}

func RegisterEventRoutes(mux *http.ServeMux, routes EventRoutes) {
	mux.HandleFunc("/events", routes.handleEvents)
	mux.HandleFunc("/events/", routes.handleEventSubroutes)
	mux.HandleFunc("/hashtags/", routes.handleHashtag)
	mux.HandleFunc("/desired", routes.handleDesired)
	mux.HandleFunc("/new-events", routes.handleNewEvents)
}

func (r EventRoutes) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filter, err := parseEventFilter(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	events, err := r.QueryService.QueryNostrFilter(req.Context(), filter)
	if err != nil {
		r.Logger.Error("query events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (r EventRoutes) handleEventSubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	parts := splitPath(strings.TrimPrefix(req.URL.Path, "/events"))
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	eventID := parts[0]
	switch {
	case len(parts) == 1:
		r.handleEventByID(w, req, eventID)
	case len(parts) == 2 && parts[1] == "relationships":
		r.handleRelationships(w, eventID)
	case len(parts) == 2 && parts[1] == "seen":
		r.handleSeen(w, req, eventID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (r EventRoutes) handleEventByID(w http.ResponseWriter, req *http.Request, eventID string) {
	if event, ok := r.QueryService.Event(eventID); ok {
		writeJSON(w, http.StatusOK, event)
		return
	}

	event, err := r.Store.GetEvent(req.Context(), eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		r.Logger.Error("load event failed", "event_id", eventID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load failed"})
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (r EventRoutes) handleRelationships(w http.ResponseWriter, eventID string) {
	writeJSON(w, http.StatusOK, relationshipsResponse{
		Referencing: relationshipRows(r.QueryService.Referencing(eventID)),
		Claims:      relationshipRows(r.QueryService.Claims(eventID)),
		Deleted:     r.QueryService.IsDeleted(eventID),
	})
}

func (r EventRoutes) handleSeen(w http.ResponseWriter, req *http.Request, eventID string) {
	seen, err := r.Store.ListEventSeen(req.Context(), eventID)
	if err != nil {
		r.Logger.Error("list event seen failed", "event_id", eventID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load failed"})
		return
	}
	writeJSON(w, http.StatusOK, seen)
}

func (r EventRoutes) handleHashtag(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	parts := splitPath(strings.TrimPrefix(req.URL.Path, "/hashtags"))
	if len(parts) != 1 || strings.TrimSpace(parts[0]) == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	limit := 0
	if limitRaw := req.URL.Query().Get("limit"); limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		limit = n
	}

	ids, err := r.Store.EventIDsByHashtag(req.Context(), parts[0], limit)
	if err != nil {
		r.Logger.Error("hashtag lookup failed", "hashtag", parts[0], "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (r EventRoutes) handleDesired(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, r.QueryService.Desired())
}

// handleNewEvents drains the new-event list, so it only answers POST.
func (r EventRoutes) handleNewEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ids := r.QueryService.DrainNewEvents()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func relationshipRows(edges []models.Relationship) []models.EventRelationship {
	out := make([]models.EventRelationship, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.Row())
	}
	return out
}

func parseEventFilter(req *http.Request) (nostr.Filter, error) {
	q := req.URL.Query()
	filter := nostr.Filter{}

	if author := q.Get("author"); author != "" {
		filter.Authors = []string{author}
	}
	if tagRaw := q.Get("tag"); tagRaw != "" {
		name, value, ok := strings.Cut(tagRaw, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nostr.Filter{}, errors.New("tag must be name:value")
		}
		filter.Tags = nostr.TagMap{strings.TrimSpace(name): []string{strings.TrimSpace(value)}}
	}
	if kindRaw := q.Get("kind"); kindRaw != "" {
		kind, err := strconv.Atoi(kindRaw)
		if err != nil {
			return nostr.Filter{}, err
		}
		filter.Kinds = []int{kind}
	}
	if sinceRaw := q.Get("since"); sinceRaw != "" {
		since, err := strconv.ParseInt(sinceRaw, 10, 64)
		if err != nil {
			return nostr.Filter{}, err
		}
		ts := nostr.Timestamp(since)
		filter.Since = &ts
	}
	if untilRaw := q.Get("until"); untilRaw != "" {
		until, err := strconv.ParseInt(untilRaw, 10, 64)
		if err != nil {
			return nostr.Filter{}, err
		}
		ts := nostr.Timestamp(until)
		filter.Until = &ts
	}
	if limitRaw := q.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			return nostr.Filter{}, err
		}
		filter.Limit = limit
	}

	return filter, nil
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return []string{}
	}
	return strings.Split(path, "/")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
