package services

import (
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"nostr-ingest/src/models"
)

// Reference points at another event, optionally with a relay hint.
type Reference struct {
	ID   string
	Hint string
}

type ReactionClaim struct {
	Reference
	Content string
}

type DeletionClaim struct {
	IDs    []string
	Reason string
}

// Claims are the relationships an event asserts about other events.
type Claims struct {
	ReplyTo   *Reference
	Ancestors []Reference
	ReactsTo  *ReactionClaim
	Deletes   *DeletionClaim
	Hashtags  []string
}

// Resolver derives relationship claims from an event's tags and content.
// It must be deterministic and must not touch the network.
type Resolver interface {
	Resolve(event models.Event) Claims
}

// TagResolver interprets NIP-10 threads, NIP-25 reactions, NIP-09
// deletions and "t" hashtags.
type TagResolver struct{}

func NewTagResolver() TagResolver {
	return TagResolver{}
}

func (TagResolver) Resolve(event models.Event) Claims {
	claims := Claims{Hashtags: hashtags(event.Tags)}
	eTags := eventTags(event.Tags)

	switch {
	case isThreadableKind(event.Kind):
		claims.ReplyTo, claims.Ancestors = threadReferences(eTags)
	case event.Kind == models.KindReaction:
		if len(eTags) == 0 {
			break
		}
		target := eTags[len(eTags)-1]
		content := event.Content
		if content == "" {
			content = "+"
		}
		claims.ReactsTo = &ReactionClaim{
			Reference: Reference{ID: target[1], Hint: tagRelayHint(target)},
			Content:   content,
		}
	case event.Kind == models.KindDeletion:
		if len(eTags) == 0 {
			break
		}
		ids := make([]string, 0, len(eTags))
		for _, tag := range eTags {
			ids = append(ids, tag[1])
		}
		claims.Deletes = &DeletionClaim{IDs: ids, Reason: event.Content}
	}

	return claims
}

// threadReferences returns the direct parent and the ancestors above it.
// Marked tags are preferred; otherwise the deprecated positional form is
// used (first is root, last is the parent, the rest are mentions).
func threadReferences(eTags [][]string) (*Reference, []Reference) {
	if len(eTags) == 0 {
		return nil, nil
	}

	var root, reply []string
	if hasMarkedTags(eTags) {
		for _, tag := range eTags {
			switch tagMarker(tag) {
			case "root":
				root = tag
			case "reply":
				reply = tag
			}
		}
		if reply == nil {
			reply = root
		}
	} else {
		root = eTags[0]
		reply = eTags[len(eTags)-1]
	}

	if reply == nil {
		return nil, nil
	}
	parent := &Reference{ID: reply[1], Hint: tagRelayHint(reply)}

	var ancestors []Reference
	if root != nil && root[1] != reply[1] {
		ancestors = append(ancestors, Reference{ID: root[1], Hint: tagRelayHint(root)})
	}
	return parent, ancestors
}

func eventTags(tags [][]string) [][]string {
	out := make([][]string, 0)
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == "e" && strings.TrimSpace(tag[1]) != "" {
			out = append(out, tag)
		}
	}
	return out
}

func hasMarkedTags(eTags [][]string) bool {
	for _, tag := range eTags {
		if tagMarker(tag) != "" {
			return true
		}
	}
	return false
}

func tagMarker(tag []string) string {
	if len(tag) >= 4 {
		return tag[3]
	}
	return ""
}

// tagRelayHint returns the normalized relay URL in position 2, or "" when
// absent or not a relay URL.
func tagRelayHint(tag []string) string {
	if len(tag) < 3 {
		return ""
	}
	url := strings.TrimSpace(tag[2])
	if url == "" || !nostr.IsValidRelayURL(url) {
		return ""
	}
	return nostr.NormalizeURL(url)
}

func hashtags(tags [][]string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "t" {
			continue
		}
		h := strings.TrimSpace(tag[1])
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func isThreadableKind(kind int) bool {
	return kind == models.KindTextNote || kind == models.KindArticle
}
