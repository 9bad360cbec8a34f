package models

// EventTagSlots is the number of positional tag fields retained per row
// (label plus four arguments).
const EventTagSlots = 5

// EventTag stores one positional tag row from an event.
type EventTag struct {
	EventID string  `json:"event_id"`
	Seq     int     `json:"seq"`
	Label   *string `json:"label,omitempty"`
	Field0  *string `json:"field0,omitempty"`
	Field1  *string `json:"field1,omitempty"`
	Field2  *string `json:"field2,omitempty"`
	Field3  *string `json:"field3,omitempty"`
}
