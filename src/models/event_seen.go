package models

// EventSeen is the most recent time an event was observed on a relay.
type EventSeen struct {
	EventID  string `json:"event_id"`
	Relay    string `json:"relay"`
	WhenSeen int64  `json:"when_seen"`
}

// EventHashtag links an event to one hashtag it carries.
type EventHashtag struct {
	EventID string `json:"event_id"`
	Hashtag string `json:"hashtag"`
}
