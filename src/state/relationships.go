package state

import (
	"sync"

	"nostr-ingest/src/models"
)

// RelationshipGraph is a multimap of edges keyed by the original event id,
// with a secondary index by referring id for outbound lookups.
type RelationshipGraph struct {
	mu          sync.RWMutex
	edges       map[models.Relationship]struct{}
	byOriginal  map[string][]models.Relationship
	byReferring map[string][]models.Relationship
}

func NewRelationshipGraph() *RelationshipGraph {
	return &RelationshipGraph{
		edges:       make(map[models.Relationship]struct{}),
		byOriginal:  make(map[string][]models.Relationship),
		byReferring: make(map[string][]models.Relationship),
	}
}

// Add records the edge unless an identical one is already present. Distinct
// kinds between the same pair coexist.
func (g *RelationshipGraph) Add(original, referring string, kind models.RelationshipKind) bool {
	edge := models.Relationship{Original: original, Referring: referring, Kind: kind}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[edge]; ok {
		return false
	}
	g.edges[edge] = struct{}{}
	g.byOriginal[original] = append(g.byOriginal[original], edge)
	g.byReferring[referring] = append(g.byReferring[referring], edge)
	return true
}

// Referencing returns the edges whose original is id.
func (g *RelationshipGraph) Referencing(id string) []models.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.Relationship(nil), g.byOriginal[id]...)
}

// Claims returns the edges whose referring event is id.
func (g *RelationshipGraph) Claims(id string) []models.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.Relationship(nil), g.byReferring[id]...)
}

func (g *RelationshipGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
