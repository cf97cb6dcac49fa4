// Package repository declares the persistence contracts of the blog service.
// Implementations live in the postgres and memory subpackages.
package repository

import (
	"context"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

// UserRepository persists identities and their active refresh-token sets.
// It is the only place refresh-token membership is stored.
type UserRepository interface {
	// Create inserts a new user, including its initial refresh tokens.
	// A duplicate email yields an ALREADY_EXISTS error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id, or a NOT_FOUND error.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email, or a NOT_FOUND error.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// AddRefreshToken appends token to the user's active set.
	AddRefreshToken(ctx context.Context, userID, token string) error

	// ReplaceRefreshToken atomically removes oldToken and adds newToken,
	// but only if oldToken is currently active. It reports whether the swap
	// happened; false leaves the set unchanged.
	ReplaceRefreshToken(ctx context.Context, userID, oldToken, newToken string) (bool, error)

	// RemoveRefreshToken removes token if active and reports whether it was.
	RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error)
}

// Store is the record-store contract shared by posts and comments. T is the
// record pointer type, P its partial update and F its list filter.
type Store[T any, P any, F any] interface {
	// Find lists records matching filter, oldest first, with the total
	// number of matches before pagination.
	Find(ctx context.Context, filter F, page pagination.Params) ([]T, int, error)

	// FindByID retrieves a record, or a NOT_FOUND error.
	FindByID(ctx context.Context, id string) (T, error)

	// Create inserts a record whose id, creator and timestamps are set.
	Create(ctx context.Context, rec T) error

	// FindByIDAndUpdate applies patch and returns the updated record. The
	// creator column is never written.
	FindByIDAndUpdate(ctx context.Context, id string, patch P) (T, error)

	// FindByIDAndDelete deletes a record and returns it as it was.
	FindByIDAndDelete(ctx context.Context, id string) (T, error)
}

type PostRepository = Store[*domain.Post, domain.PostPatch, domain.PostFilter]

// CommentRepository stores comments. Deleting a post deletes its comments.
type CommentRepository = Store[*domain.Comment, domain.CommentPatch, domain.CommentFilter]
