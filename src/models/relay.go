package models

// Relay is a known relay endpoint. Dirty marks local edits not yet saved.
type Relay struct {
	URL             string `json:"url"`
	Post            bool   `json:"post"`
	SuccessCount    uint64 `json:"success_count"`
	FailureCount    uint64 `json:"failure_count"`
	LastConnectedAt int64  `json:"last_connected_at,omitempty"`
	LastSuccessAt   int64  `json:"last_success_at,omitempty"`
	Dirty           bool   `json:"dirty"`
}

// PersonRelay tracks when a person was last fetched from, or suggested by
// tag for, a relay.
type PersonRelay struct {
	Person             string `json:"person"`
	Relay              string `json:"relay"`
	LastFetched        *int64 `json:"last_fetched,omitempty"`
	LastSuggestedByTag *int64 `json:"last_suggested_bytag,omitempty"`
}
