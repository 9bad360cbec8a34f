package state

import (
	"sort"
	"sync"

	"nostr-ingest/src/models"
)

// RelayTable is the in-memory view of known relays.
type RelayTable struct {
	mu     sync.RWMutex
	relays map[string]models.Relay
}

func NewRelayTable() *RelayTable {
	return &RelayTable{relays: make(map[string]models.Relay)}
}

// Load replaces the table with persisted rows, all clean.
func (t *RelayTable) Load(relays []models.Relay) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.relays = make(map[string]models.Relay, len(relays))
	for _, r := range relays {
		r.Dirty = false
		t.relays[r.URL] = r
	}
}

// Learn adds url with default fields if it is not known yet.
func (t *RelayTable) Learn(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.relays[url]; ok {
		return false
	}
	t.relays[url] = models.Relay{URL: url}
	return true
}

func (t *RelayTable) Get(url string) (models.Relay, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.relays[url]
	return r, ok
}

// Update applies fn to the relay under the write lock and marks it dirty.
// Unknown URLs are left alone.
func (t *RelayTable) Update(url string, fn func(*models.Relay)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.relays[url]
	if !ok {
		return false
	}
	fn(&r)
	r.Dirty = true
	t.relays[url] = r
	return true
}

// MarkClean clears the dirty flag once saved has been written. If the
// relay changed after saved was read it stays dirty.
func (t *RelayTable) MarkClean(saved models.Relay) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.relays[saved.URL]
	if !ok || r != saved {
		return
	}
	r.Dirty = false
	t.relays[saved.URL] = r
}

// List returns every relay sorted by URL.
func (t *RelayTable) List() []models.Relay {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Relay, 0, len(t.relays))
	for _, r := range t.relays {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func (t *RelayTable) Dirty() []models.Relay {
	out := make([]models.Relay, 0)
	for _, r := range t.List() {
		if r.Dirty {
			out = append(out, r)
		}
	}
	return out
}

func (t *RelayTable) PostRelays() []models.Relay {
	out := make([]models.Relay, 0)
	for _, r := range t.List() {
		if r.Post {
			out = append(out, r)
		}
	}
	return out
}
