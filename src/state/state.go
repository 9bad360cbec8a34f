// Package state holds the process-wide containers shared between the
// ingestion pipeline and its readers. Each container guards itself with a
// readers-writer lock; no lock is held across I/O.
package state

// Runtime groups the shared containers. It is created once at startup and
// lives for the process lifetime.
type Runtime struct {
	Events        *EventCache
	Relationships *RelationshipGraph
	Desired       *DesiredQueue
	Relays        *RelayTable
	NewEvents     *NewEvents
}

func New() *Runtime {
	return &Runtime{
		Events:        NewEventCache(),
		Relationships: NewRelationshipGraph(),
		Desired:       NewDesiredQueue(),
		Relays:        NewRelayTable(),
		NewEvents:     NewNewEvents(),
	}
}
