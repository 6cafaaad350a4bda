package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	Message      string             `bson:"message" json:"message"`
	Creator      string             `bson:"creator" json:"creator"`
	Name         string             `bson:"name" json:"name"`
	Tags         []string           `bson:"tags" json:"tags"`
	SelectedFile string             `bson:"selectedFile" json:"selectedFile"`
	Likes        []string           `bson:"likes" json:"likes"`
	Comments     []Comment          `bson:"comments" json:"comments"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// EnsureSlices replaces nil slices so documents store and render empty
// arrays instead of null.
func (p *Post) EnsureSlices() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

// Comment is either a structured comment or, for documents written by early
// clients, a single "Name: text" string. Both decode into this struct; the
// Legacy flag records which form was read. Writes always use the structured
// form.
type Comment struct {
	Text      string    `bson:"comment" json:"comment"`
	Author    string    `bson:"user" json:"user"`
	AuthorID  string    `bson:"userId,omitempty" json:"userId,omitempty"`
	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt,omitzero"`

	Legacy bool `bson:"-" json:"-"`
}

// LegacyCommentSeparator splits the author from the text in legacy comments.
const LegacyCommentSeparator = ": "

// ParseLegacyComment splits on the first separator. A string without one is
// all text and no author.
func ParseLegacyComment(s string) Comment {
	author, text, ok := strings.Cut(s, LegacyCommentSeparator)
	if !ok {
		return Comment{Text: s, Legacy: true}
	}
	return Comment{Author: author, Text: text, Legacy: true}
}

type commentDoc Comment

func (c *Comment) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*c = ParseLegacyComment(raw.StringValue())
		return nil
	case bsontype.EmbeddedDocument:
		var doc commentDoc
		if err := raw.Unmarshal(&doc); err != nil {
			return err
		}
		*c = Comment(doc)
		return nil
	case bsontype.Null, bsontype.Undefined:
		*c = Comment{}
		return nil
	default:
		return fmt.Errorf("comment: unsupported bson type %s", t)
	}
}
