package relay

import (
	"net/http"
	"strings"

	"nostr-ingest/src/services"
)

type PeopleRoutes struct {
	People *services.PeopleService
}

func RegisterPeopleRoutes(mux *http.ServeMux, routes PeopleRoutes) {
	mux.HandleFunc("/people/", routes.handlePerson)
}

func (r PeopleRoutes) handlePerson(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	parts := splitPath(strings.TrimPrefix(req.URL.Path, "/people"))
	if len(parts) != 1 || strings.TrimSpace(parts[0]) == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	person, ok := r.People.Get(parts[0])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "person not found"})
		return
	}
	writeJSON(w, http.StatusOK, person)
}
