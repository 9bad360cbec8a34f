package state

import "sync"

// NewEvents is the drainable list of freshly processed event ids. Ready
// fires after a push so a consumer can wait instead of polling.
type NewEvents struct {
	mu    sync.Mutex
	ids   []string
	ready chan struct{}
}

func NewNewEvents() *NewEvents {
	return &NewEvents{ready: make(chan struct{}, 1)}
}

func (n *NewEvents) Push(id string) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()

	select {
	case n.ready <- struct{}{}:
	default:
	}
}

func (n *NewEvents) Drain() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.ids
	n.ids = nil
	return out
}

func (n *NewEvents) Ready() <-chan struct{} {
	return n.ready
}
