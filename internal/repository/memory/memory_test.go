package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/internal/repository"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.PostRepository    = (*PostRepository)(nil)
	_ repository.CommentRepository = (*CommentRepository)(nil)
)

func strPtr(s string) *string { return &s }

func seedPost(t *testing.T, s *Store, id, sender string) *domain.Post {
	t.Helper()
	p := &domain.Post{ID: id, Sender: sender, Message: "m-" + id, CreatedBy: "u1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.Posts().Create(context.Background(), p))
	return p
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	s := NewStore()
	users := s.Users()
	ctx := context.Background()

	u := &domain.User{ID: "u1", Email: "a@b.com", PasswordHash: "h", RefreshTokens: []string{"r1"}}
	require.NoError(t, users.Create(ctx, u))

	err := users.Create(ctx, &domain.User{ID: "u2", Email: "a@b.com"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	byID, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	byEmail, err := users.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = users.GetByEmail(ctx, "missing@b.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Returned users are copies.
	byID.RefreshTokens[0] = "tampered"
	again, _ := users.GetByID(ctx, "u1")
	assert.Equal(t, []string{"r1"}, again.RefreshTokens)
}

func TestUserRepository_RefreshTokenLifecycle(t *testing.T) {
	s := NewStore()
	users := s.Users()
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Email: "a@b.com", RefreshTokens: []string{"r1"}}))

	require.NoError(t, users.AddRefreshToken(ctx, "u1", "r2"))
	assert.ErrorIs(t, users.AddRefreshToken(ctx, "nobody", "r2"), apperrors.ErrNotFound)

	ok, err := users.ReplaceRefreshToken(ctx, "u1", "r1", "r3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.ReplaceRefreshToken(ctx, "u1", "r1", "r4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = users.RemoveRefreshToken(ctx, "u1", "r2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = users.RemoveRefreshToken(ctx, "u1", "r2")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, u.RefreshTokens)
}

func TestUserRepository_ConcurrentReplaceHasOneWinner(t *testing.T) {
	s := NewStore()
	users := s.Users()
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Email: "a@b.com", RefreshTokens: []string{"r1"}}))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := users.ReplaceRefreshToken(ctx, "u1", "r1", fmt.Sprintf("n%d", i))
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	u, _ := users.GetByID(ctx, "u1")
	assert.Len(t, u.RefreshTokens, 1)
}

func TestPostRepository_FindFiltersAndPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i := range 5 {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		seedPost(t, s, fmt.Sprintf("p%d", i), sender)
	}

	all, total, err := s.Posts().Find(ctx, domain.PostFilter{}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, all, 5)
	assert.Equal(t, "p0", all[0].ID)

	alice, total, err := s.Posts().Find(ctx, domain.PostFilter{Sender: "alice"}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, alice, 3)

	page2, total, err := s.Posts().Find(ctx, domain.PostFilter{}, pagination.Params{Page: 2, PerPage: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page2, 2)
	assert.Equal(t, "p2", page2[0].ID)

	beyond, total, err := s.Posts().Find(ctx, domain.PostFilter{}, pagination.Params{Page: 9, PerPage: 2, Offset: 16})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, beyond)
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPost(t, s, "p1", "alice")

	updated, err := s.Posts().FindByIDAndUpdate(ctx, "p1", domain.PostPatch{Message: strPtr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Message)
	assert.Equal(t, "alice", updated.Sender)
	assert.Equal(t, "u1", updated.CreatedBy)

	_, err = s.Posts().FindByIDAndUpdate(ctx, "nope", domain.PostPatch{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	deleted, err := s.Posts().FindByIDAndDelete(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "edited", deleted.Message)

	_, err = s.Posts().FindByID(ctx, "p1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Posts().FindByIDAndDelete(ctx, "p1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCommentRepository_RequiresPostAndCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	comments := s.Comments()

	err := comments.Create(ctx, &domain.Comment{ID: "c0", PostID: "ghost"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	seedPost(t, s, "p1", "alice")
	seedPost(t, s, "p2", "alice")
	require.NoError(t, comments.Create(ctx, &domain.Comment{ID: "c1", PostID: "p1", Sender: "bob"}))
	require.NoError(t, comments.Create(ctx, &domain.Comment{ID: "c2", PostID: "p1", Sender: "carol"}))
	require.NoError(t, comments.Create(ctx, &domain.Comment{ID: "c3", PostID: "p2", Sender: "bob"}))

	byPost, total, err := comments.Find(ctx, domain.CommentFilter{PostID: "p1"}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, byPost, 2)

	bob, total, err := comments.Find(ctx, domain.CommentFilter{Sender: "bob"}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, bob, 2)

	_, err = s.Posts().FindByIDAndDelete(ctx, "p1")
	require.NoError(t, err)

	_, err = comments.FindByID(ctx, "c1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	remaining, total, err := comments.Find(ctx, domain.CommentFilter{}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "c3", remaining[0].ID)
}

func TestCommentRepository_UpdateAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPost(t, s, "p1", "alice")
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "c1", PostID: "p1", Sender: "bob", Message: "hi", CreatedBy: "u2"}))

	updated, err := s.Comments().FindByIDAndUpdate(ctx, "c1", domain.CommentPatch{Sender: strPtr("robert")})
	require.NoError(t, err)
	assert.Equal(t, "robert", updated.Sender)
	assert.Equal(t, "hi", updated.Message)
	assert.Equal(t, "p1", updated.PostID)

	deleted, err := s.Comments().FindByIDAndDelete(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", deleted.ID)

	_, err = s.Comments().FindByIDAndDelete(ctx, "c1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
