package models

// RelationshipKind is one of Reply, Reaction or Deletion.
type RelationshipKind interface {
	relationshipName() string
}

// Reply marks the referring event as a reply to the original.
type Reply struct{}

// Reaction carries the reaction content (emoji, "+", "-").
type Reaction struct {
	Content string `json:"content"`
}

// Deletion carries the author supplied reason, possibly empty.
type Deletion struct {
	Reason string `json:"reason"`
}

func (Reply) relationshipName() string    { return RelationshipReply }
func (Reaction) relationshipName() string { return RelationshipReaction }
func (Deletion) relationshipName() string { return RelationshipDeletion }

const (
	RelationshipReply    = "reply"
	RelationshipReaction = "reaction"
	RelationshipDeletion = "deletion"
)

// RelationshipName returns the persisted name of a relationship kind.
func RelationshipName(kind RelationshipKind) string {
	if kind == nil {
		return ""
	}
	return kind.relationshipName()
}

// Relationship is a directed edge from the referring event to the original.
type Relationship struct {
	Original  string           `json:"original"`
	Referring string           `json:"referring"`
	Kind      RelationshipKind `json:"-"`
}

// EventRelationship is the durable row for a Relationship.
type EventRelationship struct {
	Original     string  `json:"original"`
	Referring    string  `json:"referring"`
	Relationship string  `json:"relationship"`
	Content      *string `json:"content,omitempty"`
	Reason       *string `json:"reason,omitempty"`
}

// Row converts the edge to its durable form.
func (r Relationship) Row() EventRelationship {
	row := EventRelationship{
		Original:     r.Original,
		Referring:    r.Referring,
		Relationship: RelationshipName(r.Kind),
	}
	switch kind := r.Kind.(type) {
	case Reaction:
		content := kind.Content
		row.Content = &content
	case Deletion:
		reason := kind.Reason
		row.Reason = &reason
	}
	return row
}
