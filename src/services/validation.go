package services

import (
	"fmt"
	"regexp"

	"nostr-ingest/src/models"
)

var hex64 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidateShape rejects events whose identity fields cannot be used as keys.
// Signatures are checked before events reach the pipeline.
func ValidateShape(event models.Event) error {
	if !hex64.MatchString(event.ID) {
		return fmt.Errorf("%w: invalid event id", ErrInvalidEvent)
	}
	if !hex64.MatchString(event.PubKey) {
		return fmt.Errorf("%w: invalid event pubkey", ErrInvalidEvent)
	}
	if event.CreatedAt < 0 {
		return fmt.Errorf("%w: negative created_at", ErrInvalidEvent)
	}
	return nil
}
