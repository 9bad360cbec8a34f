package models

// DesiredEvent is an event id referenced locally but not yet fetched.
// Hint is an optional relay URL the event is expected to be found on.
type DesiredEvent struct {
	ID   string `json:"id"`
	Hint string `json:"hint,omitempty"`
}
