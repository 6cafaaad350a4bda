// Package posts holds the post rules: creator-only edits, like toggling and
// comments.
package posts

import (
	"context"
	"errors"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"goodmoments/apperr"
	"goodmoments/models"
	"goodmoments/repositories"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PageSize = 8

const msgSomethingWrong = "Something went wrong"

// ImageStore optionally moves inline images out of the post document.
type ImageStore interface {
	Store(ctx context.Context, value string) (string, error)
}

// Caller is the identity resolved by the auth middleware. A zero Caller
// means the request is unauthenticated.
type Caller struct {
	ID   string
	Name string
}

func (c Caller) Authenticated() bool {
	return c.ID != ""
}

type Input struct {
	Title        string
	Message      string
	Tags         []string
	SelectedFile string
}

type Page struct {
	Data          []models.Post `json:"data"`
	CurrentPage   int           `json:"currentPage"`
	NumberOfPages int           `json:"numberOfPages"`
}

type Service struct {
	posts  repositories.PostStore
	images ImageStore
	now    func() time.Time
}

// NewService builds the post service. images may be nil, in which case
// images stay inline.
func NewService(posts repositories.PostStore, images ImageStore) *Service {
	return &Service{posts: posts, images: images, now: time.Now}
}

func internal(err error) error {
	return apperr.Wrap(msgSomethingWrong, err)
}

func notFound(id string) error {
	return apperr.New(apperr.NotFound, "No post with id: "+id)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound(id)
	}
	return oid, nil
}

func storeErr(id string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound(id)
	}
	return internal(err)
}

func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	skip := int64(page-1) * PageSize
	data, total, err := s.posts.List(ctx, skip, PageSize)
	if err != nil {
		return nil, internal(err)
	}
	return &Page{
		Data:          data,
		CurrentPage:   page,
		NumberOfPages: int(math.Ceil(float64(total) / PageSize)),
	}, nil
}

// ParseTags splits a comma separated tag list and normalizes every entry to
// a single leading '#'. Percent-encoded '#' (%23) is accepted.
func ParseTags(raw string) []string {
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(tag, "%23"); ok {
			tag = "#" + rest
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	return tags
}

// Search matches title OR tags. "none" is the client's placeholder for no
// title query.
func (s *Service) Search(ctx context.Context, searchQuery, tags string) ([]models.Post, error) {
	q := repositories.PostQuery{Tags: ParseTags(tags)}
	if title := strings.TrimSpace(searchQuery); title != "" && title != "none" {
		q.TitleContains = title
	}
	found, err := s.posts.Search(ctx, q)
	if err != nil {
		return nil, internal(err)
	}
	return found, nil
}

func (s *Service) ByCreator(ctx context.Context, name string) ([]models.Post, error) {
	found, err := s.posts.FindByCreatorName(ctx, name)
	if err != nil {
		return nil, internal(err)
	}
	return found, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Post, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.FindByID(ctx, oid)
	if err != nil {
		return nil, storeErr(id, err)
	}
	return post, nil
}

// hostImage swaps an inline image for a hosted URL when an image store is
// configured. Upload failures keep the image inline.
func (s *Service) hostImage(ctx context.Context, value string) string {
	if s.images == nil || value == "" {
		return value
	}
	hosted, err := s.images.Store(ctx, value)
	if err != nil {
		log.Printf("[Posts] image upload failed, keeping inline image: %v", err)
		return value
	}
	return hosted
}

// Create binds authorship to the caller. Creator fields in the request body
// are never consulted.
func (s *Service) Create(ctx context.Context, caller Caller, in Input) (*models.Post, error) {
	if !caller.Authenticated() {
		return nil, apperr.New(apperr.Unauthorized, "Unauthenticated")
	}
	post := &models.Post{
		Title:        in.Title,
		Message:      in.Message,
		Tags:         in.Tags,
		SelectedFile: s.hostImage(ctx, in.SelectedFile),
		Creator:      caller.ID,
		Name:         caller.Name,
		CreatedAt:    s.now(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, internal(err)
	}
	return post, nil
}

// authorize loads the post and checks that caller created it.
func (s *Service) authorize(ctx context.Context, caller Caller, id string) (primitive.ObjectID, error) {
	oid, err := parseID(id)
	if err != nil {
		return oid, err
	}
	if !caller.Authenticated() {
		return oid, apperr.New(apperr.Unauthorized, "Unauthenticated")
	}
	post, err := s.posts.FindByID(ctx, oid)
	if err != nil {
		return oid, storeErr(id, err)
	}
	if post.Creator != caller.ID {
		return oid, apperr.New(apperr.Forbidden, "You can only modify your own posts")
	}
	return oid, nil
}

func (s *Service) Update(ctx context.Context, caller Caller, id string, in Input) (*models.Post, error) {
	oid, err := s.authorize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.posts.Update(ctx, oid, repositories.PostChanges{
		Title:        in.Title,
		Message:      in.Message,
		Tags:         in.Tags,
		SelectedFile: s.hostImage(ctx, in.SelectedFile),
	})
	if err != nil {
		return nil, storeErr(id, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	oid, err := s.authorize(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, oid); err != nil {
		return storeErr(id, err)
	}
	return nil
}

func (s *Service) Like(ctx context.Context, caller Caller, id string) (*models.Post, error) {
	if !caller.Authenticated() {
		return nil, apperr.New(apperr.Unauthorized, "Unauthenticated")
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.ToggleLike(ctx, oid, caller.ID)
	if err != nil {
		return nil, storeErr(id, err)
	}
	return post, nil
}

func (s *Service) Comment(ctx context.Context, caller Caller, id, value string) (*models.Post, error) {
	if !caller.Authenticated() {
		return nil, apperr.New(apperr.Unauthorized, "Unauthenticated")
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(value) == "" {
		return nil, apperr.New(apperr.BadRequest, "Comment cannot be empty")
	}
	author := caller.Name
	if author == "" {
		author = "Anonymous"
	}
	post, err := s.posts.AppendComment(ctx, oid, models.Comment{
		Text:      value,
		Author:    author,
		AuthorID:  caller.ID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, storeErr(id, err)
	}
	return post, nil
}
