package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/BlogGo/internal/auth"
	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/internal/event"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	pkgkafka "github.com/utafrali/BlogGo/pkg/kafka"
	"github.com/utafrali/BlogGo/pkg/logger"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) AddRefreshToken(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *mockUserRepository) ReplaceRefreshToken(ctx context.Context, userID, oldToken, newToken string) (bool, error) {
	args := m.Called(ctx, userID, oldToken, newToken)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	args := m.Called(ctx, userID, token)
	return args.Bool(0), args.Error(1)
}

// --- Mock Limiter ---

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockLimiter) RecordFailure(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- Fake event publisher ---

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.topics = append(p.topics, topic)
	return nil
}

// --- Test Helpers ---

const testSecret = "test-secret-key-for-session-tests"

type sessionFixture struct {
	svc       *SessionService
	users     *mockUserRepository
	limiter   *mockLimiter
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenIssuer
	published *recordingPublisher
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	tokens, err := auth.NewTokenIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	f := &sessionFixture{
		users:     new(mockUserRepository),
		limiter:   new(mockLimiter),
		hasher:    auth.NewPasswordHasher(bcrypt.MinCost),
		tokens:    tokens,
		published: &recordingPublisher{},
	}
	producer := event.NewProducer(f.published, logger.Discard())
	f.svc = NewSessionService(f.users, f.hasher, f.tokens, f.limiter, producer, logger.Discard())
	return f
}

func (f *sessionFixture) storedUser(t *testing.T, password string, tokens ...string) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &domain.User{
		ID:            "11111111-2222-4333-8444-555555555555",
		Email:         "jane@example.com",
		PasswordHash:  hash,
		RefreshTokens: tokens,
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_Success(t *testing.T) {
	f := newSessionFixture(t)

	var created *domain.User
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)

	pair, err := f.svc.Register(context.Background(), "  Jane@Example.com ", "pw")
	require.NoError(t, err)
	require.NotNil(t, pair)

	require.NotNil(t, created)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.NotEqual(t, "pw", created.PasswordHash)
	assert.True(t, f.hasher.Verify("pw", created.PasswordHash))
	assert.Equal(t, []string{pair.RefreshToken}, created.RefreshTokens)

	sub, err := f.tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, sub)
	sub, err = f.tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, sub)

	assert.Equal(t, []string{event.TopicUserRegistered}, f.published.topics)
	f.users.AssertExpectations(t)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.Register(context.Background(), "jane@example.com", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_PasswordLongerThanBcryptLimit(t *testing.T) {
	f := newSessionFixture(t)

	// 72 characters, 144 bytes.
	pair, err := f.svc.Register(context.Background(), "jane@example.com", strings.Repeat("é", 72))
	assert.Nil(t, pair)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	_, err = f.svc.Register(context.Background(), "jane@example.com", strings.Repeat("é", 36))
	assert.NoError(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newSessionFixture(t)
	f.users.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("user", "email", "jane@example.com"))

	pair, err := f.svc.Register(context.Background(), "jane@example.com", "pw")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.Empty(t, f.published.topics)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin_Success_AppendsRefreshToken(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw", "existing-session")

	f.limiter.On("Allow", mock.Anything, "jane@example.com").Return(nil)
	f.limiter.On("Reset", mock.Anything, "jane@example.com").Return(nil)
	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(u, nil)
	f.users.On("AddRefreshToken", mock.Anything, u.ID, mock.AnythingOfType("string")).Return(nil)

	pair, err := f.svc.Login(context.Background(), "jane@example.com", "pw")
	require.NoError(t, err)

	f.users.AssertCalled(t, "AddRefreshToken", mock.Anything, u.ID, pair.RefreshToken)
	f.users.AssertNotCalled(t, "RemoveRefreshToken", mock.Anything, mock.Anything, mock.Anything)
	f.limiter.AssertExpectations(t)
}

func TestLogin_SameMessageForUnknownEmailAndWrongPassword(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")

	f.limiter.On("Allow", mock.Anything, mock.Anything).Return(nil)
	f.limiter.On("RecordFailure", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound)
	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(u, nil)

	_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "pw")
	_, errWrong := f.svc.Login(context.Background(), "jane@example.com", "wrong")

	var a, b *apperrors.AppError
	require.ErrorAs(t, errUnknown, &a)
	require.ErrorAs(t, errWrong, &b)
	assert.Equal(t, 401, a.Status)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, "invalid email or password", a.Message)

	f.limiter.AssertNumberOfCalls(t, "RecordFailure", 2)
	f.users.AssertNotCalled(t, "AddRefreshToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_PasswordLongerThanBcryptLimit(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Login(context.Background(), "jane@example.com", strings.Repeat("é", 72))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	f.limiter.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything)
}

func TestLogin_Throttled(t *testing.T) {
	f := newSessionFixture(t)
	before := testutil.ToFloat64(sessionOperations.WithLabelValues("login", resultRateLimited))

	f.limiter.On("Allow", mock.Anything, "jane@example.com").
		Return(apperrors.RateLimited("too many failed login attempts"))

	_, err := f.svc.Login(context.Background(), "jane@example.com", "pw")
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, before+1, testutil.ToFloat64(sessionOperations.WithLabelValues("login", resultRateLimited)))
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_ThrottleUnavailableFailsOpen(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")

	f.limiter.On("Allow", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))
	f.limiter.On("Reset", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))
	f.users.On("GetByEmail", mock.Anything, "jane@example.com").Return(u, nil)
	f.users.On("AddRefreshToken", mock.Anything, u.ID, mock.Anything).Return(nil)

	_, err := f.svc.Login(context.Background(), "jane@example.com", "pw")
	assert.NoError(t, err)
}

func TestLogin_StoreFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.limiter.On("Allow", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := f.svc.Login(context.Background(), "jane@example.com", "pw")
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	f.limiter.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything)
}

func TestLogin_NilLimiterDisablesThrottle(t *testing.T) {
	f := newSessionFixture(t)
	svc := NewSessionService(f.users, f.hasher, f.tokens, nil, event.NewProducer(nil, logger.Discard()), logger.Discard())
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	for range 10 {
		_, err := svc.Login(context.Background(), "jane@example.com", "pw")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefresh_RotatesToken(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	old, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	u.RefreshTokens = []string{old, "other-session"}

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("ReplaceRefreshToken", mock.Anything, u.ID, old, mock.AnythingOfType("string")).Return(true, nil)

	pair, err := f.svc.Refresh(context.Background(), old)
	require.NoError(t, err)
	assert.NotEqual(t, old, pair.RefreshToken)
	f.users.AssertCalled(t, "ReplaceRefreshToken", mock.Anything, u.ID, old, pair.RefreshToken)
}

func TestRefresh_ConcurrentRotationLoses(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	old, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	u.RefreshTokens = []string{old}

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("ReplaceRefreshToken", mock.Anything, u.ID, old, mock.Anything).Return(false, nil)

	_, err = f.svc.Refresh(context.Background(), old)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_Rejections(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	revoked, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	access, err := f.tokens.IssueAccess(u.ID)
	require.NoError(t, err)
	orphan, err := f.tokens.IssueRefresh("99999999-2222-4333-8444-555555555555")
	require.NoError(t, err)

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("GetByID", mock.Anything, "99999999-2222-4333-8444-555555555555").Return(nil, apperrors.NotFound("user", "x"))

	_, err = f.svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	for name, tok := range map[string]string{
		"garbage":      "not.a.jwt",
		"access token": access,
		"not in set":   revoked,
		"user missing": orphan,
	} {
		_, err := f.svc.Refresh(context.Background(), tok)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized, name)
	}
	f.users.AssertNotCalled(t, "ReplaceRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func TestLogout_RemovesOnlyPresentedToken(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	tok, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	u.RefreshTokens = []string{tok, "other-session"}

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("RemoveRefreshToken", mock.Anything, u.ID, tok).Return(true, nil)

	require.NoError(t, f.svc.Logout(context.Background(), tok))
	f.users.AssertExpectations(t)
}

func TestLogout_Errors(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	notInSet, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	orphan, err := f.tokens.IssueRefresh("99999999-2222-4333-8444-555555555555")
	require.NoError(t, err)

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("GetByID", mock.Anything, "99999999-2222-4333-8444-555555555555").Return(nil, apperrors.NotFound("user", "x"))

	assert.ErrorIs(t, f.svc.Logout(context.Background(), ""), apperrors.ErrInvalidInput)

	var appErr *apperrors.AppError
	require.ErrorAs(t, f.svc.Logout(context.Background(), "garbage"), &appErr)
	assert.Equal(t, "invalid refresh token", appErr.Message)

	require.ErrorAs(t, f.svc.Logout(context.Background(), orphan), &appErr)
	assert.Equal(t, "user not found", appErr.Message)

	require.ErrorAs(t, f.svc.Logout(context.Background(), notInSet), &appErr)
	assert.Equal(t, "invalid refresh token", appErr.Message)
	assert.Equal(t, 401, appErr.Status)
}

func TestLogout_LostRace(t *testing.T) {
	f := newSessionFixture(t)
	u := f.storedUser(t, "pw")
	tok, err := f.tokens.IssueRefresh(u.ID)
	require.NoError(t, err)
	u.RefreshTokens = []string{tok}

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("RemoveRefreshToken", mock.Anything, u.ID, tok).Return(false, nil)

	assert.ErrorIs(t, f.svc.Logout(context.Background(), tok), apperrors.ErrUnauthorized)
}
