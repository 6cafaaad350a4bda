package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestParseLegacyComment(t *testing.T) {
	tests := []struct {
		in         string
		wantAuthor string
		wantText   string
	}{
		{"Jo Doe: nice shot", "Jo Doe", "nice shot"},
		{"Jo: time: 10:30", "Jo", "time: 10:30"},
		{"no separator", "", "no separator"},
		{"Jo:no space", "", "Jo:no space"},
	}
	for _, tt := range tests {
		c := ParseLegacyComment(tt.in)
		if c.Author != tt.wantAuthor || c.Text != tt.wantText || !c.Legacy {
			t.Fatalf("ParseLegacyComment(%q) = %+v", tt.in, c)
		}
	}
}

func TestPostDecodesBothCommentForms(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := bson.Marshal(bson.M{
		"title": "p",
		"comments": bson.A{
			"Jo: first",
			bson.M{"comment": "second", "user": "Al", "userId": "u1", "createdAt": created},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var post Post
	if err := bson.Unmarshal(raw, &post); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(post.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(post.Comments))
	}
	legacy, structured := post.Comments[0], post.Comments[1]
	if !legacy.Legacy || legacy.Author != "Jo" || legacy.Text != "first" {
		t.Fatalf("unexpected legacy comment %+v", legacy)
	}
	if structured.Legacy || structured.AuthorID != "u1" || !structured.CreatedAt.Equal(created) {
		t.Fatalf("unexpected structured comment %+v", structured)
	}
}

func TestCommentRejectsUnknownType(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"comments": bson.A{42}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var post Post
	if err := bson.Unmarshal(raw, &post); err == nil {
		t.Fatal("expected error for numeric comment")
	}
}

func TestEnsureSlices(t *testing.T) {
	var p Post
	p.EnsureSlices()
	if p.Tags == nil || p.Likes == nil || p.Comments == nil {
		t.Fatal("expected non-nil slices")
	}
	if len(p.Likes) != 0 {
		t.Fatalf("expected zero likes, got %d", len(p.Likes))
	}
}
