package state

import (
	"sync"

	"nostr-ingest/src/models"
)

// DesiredQueue collects ids that should be fetched. Enqueue does not
// deduplicate; the consumer does.
type DesiredQueue struct {
	mu      sync.RWMutex
	pending []models.DesiredEvent
}

func NewDesiredQueue() *DesiredQueue {
	return &DesiredQueue{}
}

func (q *DesiredQueue) Enqueue(id, hint string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, models.DesiredEvent{ID: id, Hint: hint})
}

// Drain removes and returns everything queued so far.
func (q *DesiredQueue) Drain() []models.DesiredEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *DesiredQueue) Snapshot() []models.DesiredEvent {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]models.DesiredEvent(nil), q.pending...)
}

func (q *DesiredQueue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, d := range q.pending {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (q *DesiredQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}
