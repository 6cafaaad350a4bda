package repositories

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"sync"
	"time"

	"goodmoments/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InMemoryUserStore backs tests and local runs without MongoDB.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users: make(map[primitive.ObjectID]models.User),
	}
}

func (s *InMemoryUserStore) first(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.first(func(u models.User) bool { return u.ID == oid })
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.first(func(u models.User) bool { return u.Email == email })
}

func (s *InMemoryUserStore) FindByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return s.first(func(u models.User) bool { return u.GoogleID == googleID })
}

func (s *InMemoryUserStore) FindByResetToken(_ context.Context, email, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.first(func(u models.User) bool {
		return u.Email == email &&
			u.PasswordResetToken == token &&
			u.PasswordResetExpires != nil &&
			u.PasswordResetExpires.After(now)
	})
}

// conflicts must be called with the lock held.
func (s *InMemoryUserStore) conflicts(user *models.User) bool {
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email || (user.GoogleID != "" && u.GoogleID == user.GoogleID) {
			return true
		}
	}
	return false
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if _, exists := s.users[user.ID]; exists || s.conflicts(user) {
		return ErrDuplicate
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; !exists {
		return ErrNotFound
	}
	if s.conflicts(user) {
		return ErrDuplicate
	}
	s.users[user.ID] = *user
	return nil
}

// Len reports how many users are stored.
func (s *InMemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

type InMemoryPostStore struct {
	mu    sync.RWMutex
	posts map[primitive.ObjectID]models.Post
}

func NewInMemoryPostStore() *InMemoryPostStore {
	return &InMemoryPostStore{
		posts: make(map[primitive.ObjectID]models.Post),
	}
}

func clonePost(p models.Post) models.Post {
	p.Tags = slices.Clone(p.Tags)
	p.Likes = slices.Clone(p.Likes)
	p.Comments = slices.Clone(p.Comments)
	p.EnsureSlices()
	return p
}

func (s *InMemoryPostStore) Create(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	post.EnsureSlices()
	if _, exists := s.posts[post.ID]; exists {
		return ErrDuplicate
	}
	s.posts[post.ID] = clonePost(*post)
	return nil
}

func (s *InMemoryPostStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := clonePost(p)
	return &found, nil
}

// newestFirst mirrors sorting by _id descending; ObjectIDs start with their
// creation timestamp.
func (s *InMemoryPostStore) newestFirst(match func(models.Post) bool) []models.Post {
	out := []models.Post{}
	for _, p := range s.posts {
		if match(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (s *InMemoryPostStore) List(_ context.Context, skip, limit int64) ([]models.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.newestFirst(func(models.Post) bool { return true })
	total := int64(len(all))
	if skip >= total {
		return []models.Post{}, total, nil
	}
	end := skip + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (s *InMemoryPostStore) Search(_ context.Context, q PostQuery) ([]models.Post, error) {
	var title *regexp.Regexp
	if q.TitleContains != "" {
		title = regexp.MustCompile("(?i)" + regexp.QuoteMeta(q.TitleContains))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(func(p models.Post) bool {
		if title == nil && len(q.Tags) == 0 {
			return true
		}
		if title != nil && title.MatchString(p.Title) {
			return true
		}
		for _, tag := range q.Tags {
			if slices.Contains(p.Tags, tag) {
				return true
			}
		}
		return false
	}), nil
}

func (s *InMemoryPostStore) FindByCreatorName(_ context.Context, name string) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(func(p models.Post) bool { return p.Name == name }), nil
}

func (s *InMemoryPostStore) mutate(id primitive.ObjectID, fn func(*models.Post)) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = clonePost(p)
	fn(&p)
	s.posts[id] = p
	out := clonePost(p)
	return &out, nil
}

func (s *InMemoryPostStore) Update(_ context.Context, id primitive.ObjectID, changes PostChanges) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		p.Title = changes.Title
		p.Message = changes.Message
		p.Tags = slices.Clone(changes.Tags)
		p.SelectedFile = changes.SelectedFile
	})
}

func (s *InMemoryPostStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *InMemoryPostStore) ToggleLike(_ context.Context, id primitive.ObjectID, userID string) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		if slices.Contains(p.Likes, userID) {
			p.Likes = slices.DeleteFunc(p.Likes, func(l string) bool { return l == userID })
			return
		}
		p.Likes = append(p.Likes, userID)
	})
}

func (s *InMemoryPostStore) AppendComment(_ context.Context, id primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		for i := range p.Comments {
			p.Comments[i].Legacy = false
		}
		comment.Legacy = false
		p.Comments = append(p.Comments, comment)
	})
}
