// Package postgres implements the repository contracts on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/pkg/database"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, email, password_hash, refresh_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "users.create", query)
	defer func() { end(err) }()

	tokens := u.RefreshTokens
	if tokens == nil {
		tokens = []string{}
	}

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		tokens,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, apperrors.NotFound("user", id)
	}

	query := `
		SELECT id, email, password_hash, refresh_tokens, created_at, updated_at
		FROM users
		WHERE id = $1`

	u, err := r.scanUser(ctx, "users.get_by_id", query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", id)
	}
	return u, err
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, refresh_tokens, created_at, updated_at
		FROM users
		WHERE email = $1`

	u, err := r.scanUser(ctx, "users.get_by_email", query, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return u, err
}

// AddRefreshToken appends token to the user's active refresh tokens.
func (r *UserRepository) AddRefreshToken(ctx context.Context, userID, token string) (err error) {
	if !validID(userID) {
		return apperrors.NotFound("user", userID)
	}

	query := `
		UPDATE users
		SET refresh_tokens = array_append(refresh_tokens, $2), updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "users.add_refresh_token", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("add refresh token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

// ReplaceRefreshToken swaps oldToken for newToken in a single conditional
// statement, so two concurrent refreshes with the same token cannot both win.
func (r *UserRepository) ReplaceRefreshToken(ctx context.Context, userID, oldToken, newToken string) (ok bool, err error) {
	if !validID(userID) {
		return false, nil
	}

	query := `
		UPDATE users
		SET refresh_tokens = array_append(array_remove(refresh_tokens, $2), $3), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(refresh_tokens)`

	ctx, end := database.TraceQuery(ctx, "users.replace_refresh_token", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, oldToken, newToken)
	if err != nil {
		return false, fmt.Errorf("replace refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// RemoveRefreshToken removes token from the user's active set.
func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) (ok bool, err error) {
	if !validID(userID) {
		return false, nil
	}

	query := `
		UPDATE users
		SET refresh_tokens = array_remove(refresh_tokens, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(refresh_tokens)`

	ctx, end := database.TraceQuery(ctx, "users.remove_refresh_token", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, userID, token)
	if err != nil {
		return false, fmt.Errorf("remove refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// scanUser executes a query expected to return a single user row. A missing
// row is returned as pgx.ErrNoRows for the caller to translate.
func (r *UserRepository) scanUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.RefreshTokens,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// validID reports whether id can be compared against a UUID column. Anything
// else cannot match a row.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
