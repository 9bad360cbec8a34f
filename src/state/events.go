package state

import (
	"sync"

	"nostr-ingest/src/models"
)

// EventCache maps event id to the newest in-memory copy of the event.
type EventCache struct {
	mu     sync.RWMutex
	events map[string]models.Event
}

func NewEventCache() *EventCache {
	return &EventCache{events: make(map[string]models.Event)}
}

// Put inserts or overwrites the event.
func (c *EventCache) Put(event models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[event.ID] = event
}

func (c *EventCache) Get(id string) (models.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	event, ok := c.events[id]
	return event, ok
}

func (c *EventCache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.events[id]
	return ok
}

func (c *EventCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Filter returns a copy of every cached event for which keep reports true.
func (c *EventCache) Filter(keep func(models.Event) bool) []models.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Event, 0)
	for _, event := range c.events {
		if keep(event) {
			out = append(out, event)
		}
	}
	return out
}
