package models

// Event is an accepted nostr event. It is never mutated after ingestion.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
	Ots       string     `json:"ots,omitempty"`
}

const (
	KindMetadata = 0
	KindTextNote = 1
	KindDeletion = 5
	KindReaction = 7
	KindArticle  = 30023
)
