package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/models"
)

func generateKeypair(t *testing.T) (priv string, pub string) {
	t.Helper()
	priv = nostr.GeneratePrivateKey()
	var err error
	pub, err = nostr.GetPublicKey(priv)
	if err != nil {
		t.Fatalf("derive pubkey: %v", err)
	}
	return priv, pub
}

func signedModelEvent(t *testing.T, priv string, createdAt int64, kind int, tags [][]string, content string) models.Event {
	t.Helper()

	pub, err := nostr.GetPublicKey(priv)
	if err != nil {
		t.Fatalf("derive pubkey: %v", err)
	}

	nostrTags := make(nostr.Tags, 0, len(tags))
	for _, tag := range tags {
		nostrTag := make(nostr.Tag, len(tag))
		copy(nostrTag, tag)
		nostrTags = append(nostrTags, nostrTag)
	}

	evt := nostr.Event{
		PubKey:    pub,
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      kind,
		Tags:      nostrTags,
		Content:   content,
	}
	if err := evt.Sign(priv); err != nil {
		t.Fatalf("sign event: %v", err)
	}

	return models.Event{
		ID:        evt.ID,
		PubKey:    evt.PubKey,
		CreatedAt: createdAt,
		Kind:      evt.Kind,
		Tags:      tags,
		Content:   evt.Content,
		Sig:       evt.Sig,
	}
}

func TestValidateShapeRejectsMalformedFields(t *testing.T) {
	priv, _ := generateKeypair(t)
	base := signedModelEvent(t, priv, 1700000000, 1, [][]string{{"t", "nostr"}}, "hello")

	tests := []struct {
		name    string
		mutate  func(models.Event) models.Event
		wantErr string
	}{
		{
			name: "invalid id format",
			mutate: func(event models.Event) models.Event {
				event.ID = "not-hex"
				return event
			},
			wantErr: "invalid event id",
		},
		{
			name: "invalid pubkey format",
			mutate: func(event models.Event) models.Event {
				event.PubKey = "not-hex"
				return event
			},
			wantErr: "invalid event pubkey",
		},
		{
			name: "negative timestamp",
			mutate: func(event models.Event) models.Event {
				event.CreatedAt = -1
				return event
			},
			wantErr: "negative created_at",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateShape(tc.mutate(base))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ValidateShape error = %v, want substring %q", err, tc.wantErr)
			}
			if !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}

	if err := ValidateShape(base); err != nil {
		t.Fatalf("signed event should pass shape validation: %v", err)
	}
}
