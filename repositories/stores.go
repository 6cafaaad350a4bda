package repositories

import (
	"context"
	"errors"
	"time"

	"goodmoments/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	// FindByResetToken matches email and token exactly and requires the
	// token to expire after now.
	FindByResetToken(ctx context.Context, email, token string, now time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
}

// PostQuery selects posts whose title matches TitleContains (case
// insensitive) OR whose tags contain any of Tags. An empty query matches
// everything.
type PostQuery struct {
	TitleContains string
	Tags          []string
}

// PostChanges are the creator-editable fields of a post.
type PostChanges struct {
	Title        string
	Message      string
	Tags         []string
	SelectedFile string
}

type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	// List returns one page, newest first, and the total number of posts.
	List(ctx context.Context, skip, limit int64) ([]models.Post, int64, error)
	Search(ctx context.Context, q PostQuery) ([]models.Post, error)
	FindByCreatorName(ctx context.Context, name string) ([]models.Post, error)
	Update(ctx context.Context, id primitive.ObjectID, changes PostChanges) (*models.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ToggleLike adds userID to the likes set, or removes it when present.
	ToggleLike(ctx context.Context, id primitive.ObjectID, userID string) (*models.Post, error)
	// AppendComment adds a comment and rewrites any legacy string comments
	// into the structured form.
	AppendComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) (*models.Post, error)
}
