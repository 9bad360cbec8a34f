package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nostr-ingest/src/services"
)

type RelayRoutes struct {
	Relays *services.RelayService
	Logger *slog.Logger
}

type addRelayRequest struct {
	URL string `json:"url"`
}

type setPostRequest struct {
	URL  string `json:"url"`
	Post bool   `json:"post"`
}

func RegisterRelayRoutes(mux *http.ServeMux, routes RelayRoutes) {
	mux.HandleFunc("/relays", routes.handleRelays)
	mux.HandleFunc("/relays/post", routes.handleSetPost)
	mux.HandleFunc("/relays/save", routes.handleSave)
}

func (r RelayRoutes) handleRelays(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		if req.URL.Query().Get("post") == "true" {
			writeJSON(w, http.StatusOK, r.Relays.PostRelays())
			return
		}
		writeJSON(w, http.StatusOK, r.Relays.List())

	case http.MethodPost:
		var body addRelayRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid relay payload"})
			return
		}
		url, err := r.Relays.Add(req.Context(), body.URL)
		if err != nil {
			if errors.Is(err, services.ErrInvalidRelayURL) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			r.Logger.Error("add relay failed", "url", body.URL, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "add failed"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (r RelayRoutes) handleSetPost(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var body setPostRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid post payload"})
		return
	}
	url, err := services.NormalizeRelayURL(body.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := r.Relays.SetPost(url, body.Post); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "post": body.Post})
}

func (r RelayRoutes) handleSave(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	saved, err := r.Relays.SaveRelays(req.Context())
	if err != nil {
		r.Logger.Error("save relays failed", "saved", saved, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "save failed", "saved": saved})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": saved})
}
