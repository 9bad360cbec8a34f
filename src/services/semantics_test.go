package services

import (
	"reflect"
	"testing"

	"nostr-ingest/src/models"
)

func TestTagResolverThreads(t *testing.T) {
	tests := []struct {
		name          string
		kind          int
		tags          [][]string
		wantReply     *Reference
		wantAncestors []Reference
	}{
		{
			name: "no e tags",
			kind: models.KindTextNote,
			tags: [][]string{{"p", "pub"}},
		},
		{
			name:      "single positional tag is root and parent",
			kind:      models.KindTextNote,
			tags:      [][]string{{"e", "root"}},
			wantReply: &Reference{ID: "root"},
		},
		{
			name:          "positional form uses first as root and last as parent",
			kind:          models.KindTextNote,
			tags:          [][]string{{"e", "root", "wss://r.example.com"}, {"e", "mention"}, {"e", "parent"}},
			wantReply:     &Reference{ID: "parent"},
			wantAncestors: []Reference{{ID: "root", Hint: "wss://r.example.com"}},
		},
		{
			name: "marked tags ignore mentions",
			kind: models.KindTextNote,
			tags: [][]string{
				{"e", "mention", "", "mention"},
				{"e", "parent", "wss://p.example.com", "reply"},
				{"e", "root", "", "root"},
			},
			wantReply:     &Reference{ID: "parent", Hint: "wss://p.example.com"},
			wantAncestors: []Reference{{ID: "root"}},
		},
		{
			name:      "root marker alone is the parent",
			kind:      models.KindTextNote,
			tags:      [][]string{{"e", "root", "", "root"}},
			wantReply: &Reference{ID: "root"},
		},
		{
			name:      "articles thread too",
			kind:      models.KindArticle,
			tags:      [][]string{{"e", "parent"}},
			wantReply: &Reference{ID: "parent"},
		},
		{
			name: "other kinds do not thread",
			kind: 6,
			tags: [][]string{{"e", "parent"}},
		},
		{
			name:      "invalid hint is dropped",
			kind:      models.KindTextNote,
			tags:      [][]string{{"e", "parent", "not a url"}},
			wantReply: &Reference{ID: "parent"},
		},
		{
			name: "empty ids are skipped",
			kind: models.KindTextNote,
			tags: [][]string{{"e", " "}, {"e"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := NewTagResolver().Resolve(models.Event{Kind: tc.kind, Tags: tc.tags})
			if !reflect.DeepEqual(claims.ReplyTo, tc.wantReply) {
				t.Fatalf("ReplyTo = %+v, want %+v", claims.ReplyTo, tc.wantReply)
			}
			if !reflect.DeepEqual(claims.Ancestors, tc.wantAncestors) {
				t.Fatalf("Ancestors = %+v, want %+v", claims.Ancestors, tc.wantAncestors)
			}
			if claims.ReactsTo != nil || claims.Deletes != nil {
				t.Fatalf("unexpected reaction or deletion claim: %+v", claims)
			}
		})
	}
}

func TestTagResolverReactions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		tags    [][]string
		want    *ReactionClaim
	}{
		{
			name:    "targets last e tag",
			content: "🤙",
			tags:    [][]string{{"e", "first"}, {"p", "pub"}, {"e", "last", "wss://r.example.com"}},
			want:    &ReactionClaim{Reference: Reference{ID: "last", Hint: "wss://r.example.com"}, Content: "🤙"},
		},
		{
			name: "empty content means like",
			tags: [][]string{{"e", "target"}},
			want: &ReactionClaim{Reference: Reference{ID: "target"}, Content: "+"},
		},
		{
			name:    "no e tag means no claim",
			content: "-",
			tags:    [][]string{{"p", "pub"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := NewTagResolver().Resolve(models.Event{Kind: models.KindReaction, Tags: tc.tags, Content: tc.content})
			if !reflect.DeepEqual(claims.ReactsTo, tc.want) {
				t.Fatalf("ReactsTo = %+v, want %+v", claims.ReactsTo, tc.want)
			}
			if claims.ReplyTo != nil {
				t.Fatalf("reactions must not thread, got %+v", claims.ReplyTo)
			}
		})
	}
}

func TestTagResolverDeletions(t *testing.T) {
	claims := NewTagResolver().Resolve(models.Event{
		Kind:    models.KindDeletion,
		Tags:    [][]string{{"e", "one"}, {"a", "30023:pub:slug"}, {"e", "two"}},
		Content: "posted by mistake",
	})

	want := &DeletionClaim{IDs: []string{"one", "two"}, Reason: "posted by mistake"}
	if !reflect.DeepEqual(claims.Deletes, want) {
		t.Fatalf("Deletes = %+v, want %+v", claims.Deletes, want)
	}

	empty := NewTagResolver().Resolve(models.Event{Kind: models.KindDeletion})
	if empty.Deletes != nil {
		t.Fatalf("deletion without e tags should claim nothing, got %+v", empty.Deletes)
	}
}

func TestHashtagsTrimAndDeduplicate(t *testing.T) {
	got := hashtags([][]string{{"t", "nostr"}, {"t", " go "}, {"t", "nostr"}, {"t", ""}, {"t"}, {"e", "x"}})
	want := []string{"nostr", "go"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hashtags = %v, want %v", got, want)
	}
}
