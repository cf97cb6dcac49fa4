package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/BlogGo/internal/auth"
	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/internal/event"
	"github.com/utafrali/BlogGo/internal/ratelimit"
	"github.com/utafrali/BlogGo/internal/repository"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
)

const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidRefresh     = "invalid refresh token"
	msgUserNotFound       = "user not found"
	msgPasswordTooLong    = "password must be at most 72 bytes"
)

// SessionService owns registration, login, refresh-token rotation and
// logout. It is the only writer of a user's refresh-token set.
type SessionService struct {
	users    repository.UserRepository
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	limiter  ratelimit.Limiter
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a new session service. A nil limiter disables
// login throttling.
func NewSessionService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	limiter ratelimit.Limiter,
	producer *event.Producer,
	logger *slog.Logger,
) *SessionService {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &SessionService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		limiter:  limiter,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an identity and returns its first token pair. The refresh
// token is stored with the user in a single insert.
func (s *SessionService) Register(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperrors.InvalidInput(msgPasswordTooLong)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		sessionOperations.WithLabelValues("register", resultError).Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		sessionOperations.WithLabelValues("register", resultError).Inc()
		return nil, err
	}
	user.RefreshTokens = []string{pair.RefreshToken}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			sessionOperations.WithLabelValues("register", resultRejected).Inc()
		} else {
			sessionOperations.WithLabelValues("register", resultError).Inc()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	sessionOperations.WithLabelValues("register", resultSuccess).Inc()
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))

	return pair, nil
}

// Login verifies credentials and starts a new session. Existing sessions of
// the same user stay valid.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperrors.InvalidInput(msgPasswordTooLong)
	}

	if err := s.limiter.Allow(ctx, email); err != nil {
		if errors.Is(err, apperrors.ErrRateLimited) {
			sessionOperations.WithLabelValues("login", resultRateLimited).Inc()
			s.logger.WarnContext(ctx, "login throttled", slog.String("email", email))
			return nil, err
		}
		// Throttling fails open.
		s.logger.WarnContext(ctx, "login throttle unavailable", slog.String("error", err.Error()))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			sessionOperations.WithLabelValues("login", resultError).Inc()
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		return nil, s.loginFailed(ctx, email)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, email)
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login failures", slog.String("error", err.Error()))
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		sessionOperations.WithLabelValues("login", resultError).Inc()
		return nil, err
	}

	if err := s.users.AddRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		sessionOperations.WithLabelValues("login", resultError).Inc()
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	sessionOperations.WithLabelValues("login", resultSuccess).Inc()
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return pair, nil
}

func (s *SessionService) loginFailed(ctx context.Context, email string) error {
	sessionOperations.WithLabelValues("login", resultRejected).Inc()
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", slog.String("error", err.Error()))
	}
	return apperrors.Unauthorized(msgInvalidCredentials)
}

// Refresh rotates refreshToken: it is revoked and replaced by a new one in a
// single conditional update. If a concurrent call already rotated it, the
// caller gets 401 and the set is left as the winner wrote it.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	user, err := s.activeSessionUser(ctx, "refresh", refreshToken, msgInvalidRefresh)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		sessionOperations.WithLabelValues("refresh", resultError).Inc()
		return nil, err
	}

	ok, err := s.users.ReplaceRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		sessionOperations.WithLabelValues("refresh", resultError).Inc()
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok {
		sessionOperations.WithLabelValues("refresh", resultRejected).Inc()
		s.logger.WarnContext(ctx, "refresh token already rotated", slog.String("user_id", user.ID))
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}

	sessionOperations.WithLabelValues("refresh", resultSuccess).Inc()
	s.logger.InfoContext(ctx, "refresh token rotated", slog.String("user_id", user.ID))

	return pair, nil
}

// Logout revokes refreshToken. Other sessions of the same user are kept.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	user, err := s.activeSessionUser(ctx, "logout", refreshToken, msgUserNotFound)
	if err != nil {
		return err
	}

	ok, err := s.users.RemoveRefreshToken(ctx, user.ID, refreshToken)
	if err != nil {
		sessionOperations.WithLabelValues("logout", resultError).Inc()
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !ok {
		sessionOperations.WithLabelValues("logout", resultRejected).Inc()
		return apperrors.Unauthorized(msgInvalidRefresh)
	}

	sessionOperations.WithLabelValues("logout", resultSuccess).Inc()
	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", user.ID))

	return nil
}

// activeSessionUser verifies refreshToken and loads the user it names,
// requiring the token to be in the user's active set. missingUserMsg is the
// 401 message used when the user no longer exists.
func (s *SessionService) activeSessionUser(ctx context.Context, op, refreshToken, missingUserMsg string) (*domain.User, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		sessionOperations.WithLabelValues(op, resultRejected).Inc()
		s.logger.DebugContext(ctx, "refresh token rejected",
			slog.String("operation", op),
			slog.String("reason", err.Error()),
		)
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			sessionOperations.WithLabelValues(op, resultRejected).Inc()
			return nil, apperrors.Unauthorized(missingUserMsg)
		}
		sessionOperations.WithLabelValues(op, resultError).Inc()
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.HasRefreshToken(refreshToken) {
		sessionOperations.WithLabelValues(op, resultRejected).Inc()
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}

	return user, nil
}

func (s *SessionService) issuePair(userID string) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
