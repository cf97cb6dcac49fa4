// Package memory implements the repository contracts in process memory. It
// backs STORAGE_BACKEND=memory and the handler tests; contents are lost on
// restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/BlogGo/internal/domain"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

// Store holds users, posts and comments behind a single lock so that
// cross-collection effects, such as deleting a post's comments, are atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	emails   map[string]string
	posts    []*domain.Post
	comments []*domain.Comment
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:  make(map[string]*domain.User),
		emails: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Posts() *PostRepository       { return &PostRepository{s: s} }
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }

// Ping always succeeds; it lets the store stand in for a database health
// check.
func (s *Store) Ping(context.Context) error { return nil }

// UserRepository implements repository.UserRepository.
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emails[u.Email]; ok {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}
	c := cloneUser(u)
	r.s.users[u.ID] = c
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return cloneUser(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneUser(r.s.users[id]), nil
}

func (r *UserRepository) AddRefreshToken(_ context.Context, userID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	u.RefreshTokens = append(u.RefreshTokens, token)
	u.UpdatedAt = r.s.now()
	return nil
}

func (r *UserRepository) ReplaceRefreshToken(_ context.Context, userID, oldToken, newToken string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return false, nil
	}
	i := slices.Index(u.RefreshTokens, oldToken)
	if i < 0 {
		return false, nil
	}
	u.RefreshTokens = append(slices.Delete(u.RefreshTokens, i, i+1), newToken)
	u.UpdatedAt = r.s.now()
	return true, nil
}

func (r *UserRepository) RemoveRefreshToken(_ context.Context, userID, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok || !u.HasRefreshToken(token) {
		return false, nil
	}
	u.RefreshTokens = slices.DeleteFunc(u.RefreshTokens, func(t string) bool { return t == token })
	u.UpdatedAt = r.s.now()
	return true, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.RefreshTokens = slices.Clone(u.RefreshTokens)
	return &c
}

// PostRepository implements repository.PostRepository.
type PostRepository struct{ s *Store }

func (r *PostRepository) Find(_ context.Context, filter domain.PostFilter, page pagination.Params) ([]*domain.Post, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Post
	for _, p := range r.s.posts {
		if filter.Sender != "" && p.Sender != filter.Sender {
			continue
		}
		c := *p
		matched = append(matched, &c)
	}
	return paginate(matched, page), len(matched), nil
}

func (r *PostRepository) FindByID(_ context.Context, id string) (*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	i := r.s.postIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("post", id)
	}
	c := *r.s.posts[i]
	return &c, nil
}

func (r *PostRepository) Create(_ context.Context, p *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *p
	r.s.posts = append(r.s.posts, &c)
	return nil
}

func (r *PostRepository) FindByIDAndUpdate(_ context.Context, id string, patch domain.PostPatch) (*domain.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	i := r.s.postIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("post", id)
	}
	p := r.s.posts[i]
	if patch.Sender != nil {
		p.Sender = *patch.Sender
	}
	if patch.Message != nil {
		p.Message = *patch.Message
	}
	p.UpdatedAt = r.s.now()
	c := *p
	return &c, nil
}

// FindByIDAndDelete removes the post and its comments.
func (r *PostRepository) FindByIDAndDelete(_ context.Context, id string) (*domain.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	i := r.s.postIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("post", id)
	}
	p := r.s.posts[i]
	r.s.posts = slices.Delete(r.s.posts, i, i+1)
	r.s.comments = slices.DeleteFunc(r.s.comments, func(c *domain.Comment) bool { return c.PostID == id })
	return p, nil
}

func (s *Store) postIndex(id string) int {
	return slices.IndexFunc(s.posts, func(p *domain.Post) bool { return p.ID == id })
}

// CommentRepository implements repository.CommentRepository.
type CommentRepository struct{ s *Store }

func (r *CommentRepository) Find(_ context.Context, filter domain.CommentFilter, page pagination.Params) ([]*domain.Comment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Comment
	for _, c := range r.s.comments {
		if filter.PostID != "" && c.PostID != filter.PostID {
			continue
		}
		if filter.Sender != "" && c.Sender != filter.Sender {
			continue
		}
		cc := *c
		matched = append(matched, &cc)
	}
	return paginate(matched, page), len(matched), nil
}

func (r *CommentRepository) FindByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	i := r.s.commentIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("comment", id)
	}
	c := *r.s.comments[i]
	return &c, nil
}

// Create inserts a comment if its post still exists.
func (r *CommentRepository) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.postIndex(c.PostID) < 0 {
		return apperrors.NotFound("post", c.PostID)
	}
	cc := *c
	r.s.comments = append(r.s.comments, &cc)
	return nil
}

func (r *CommentRepository) FindByIDAndUpdate(_ context.Context, id string, patch domain.CommentPatch) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	i := r.s.commentIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("comment", id)
	}
	c := r.s.comments[i]
	if patch.Sender != nil {
		c.Sender = *patch.Sender
	}
	if patch.Message != nil {
		c.Message = *patch.Message
	}
	c.UpdatedAt = r.s.now()
	cc := *c
	return &cc, nil
}

func (r *CommentRepository) FindByIDAndDelete(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	i := r.s.commentIndex(id)
	if i < 0 {
		return nil, apperrors.NotFound("comment", id)
	}
	c := r.s.comments[i]
	r.s.comments = slices.Delete(r.s.comments, i, i+1)
	return c, nil
}

func (s *Store) commentIndex(id string) int {
	return slices.IndexFunc(s.comments, func(c *domain.Comment) bool { return c.ID == id })
}

func paginate[T any](items []T, page pagination.Params) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := min(page.Offset+page.PerPage, len(items))
	return items[page.Offset:end]
}
