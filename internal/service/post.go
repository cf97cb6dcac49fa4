package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/internal/event"
	"github.com/utafrali/BlogGo/internal/repository"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

// CreatePostInput holds the client-supplied fields of a new post.
type CreatePostInput struct {
	Sender  string
	Message string
}

// PostService implements post business logic.
type PostService struct {
	posts    *Resource[*domain.Post, domain.PostPatch, domain.PostFilter]
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(repo repository.PostRepository, producer *event.Producer, logger *slog.Logger) *PostService {
	return &PostService{
		posts:    NewResource(repo, "post", logger),
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) List(ctx context.Context, filter domain.PostFilter, page pagination.Params) (pagination.Result[*domain.Post], error) {
	return s.posts.List(ctx, filter, page)
}

func (s *PostService) Get(ctx context.Context, id string) (*domain.Post, error) {
	return s.posts.Get(ctx, id)
}

// Create stores a new post owned by callerID.
func (s *PostService) Create(ctx context.Context, callerID string, in CreatePostInput) (*domain.Post, error) {
	sender, message, err := requireContent(in.Sender, in.Message)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post, err := s.posts.Create(ctx, callerID, &domain.Post{
		ID:        uuid.New().String(),
		Sender:    sender,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishPostCreated(ctx, post); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish post.created event",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "post created", slog.String("post_id", post.ID))
	return post, nil
}

// Update applies patch if callerID created the post.
func (s *PostService) Update(ctx context.Context, callerID, id string, patch domain.PostPatch) (*domain.Post, error) {
	patch.Normalize()
	return s.posts.Update(ctx, callerID, id, patch, func(p domain.PostPatch) error {
		return rejectBlank(p.Sender, p.Message)
	})
}

// Delete removes the post and its comments if callerID created it.
func (s *PostService) Delete(ctx context.Context, callerID, id string) (*domain.Post, error) {
	post, err := s.posts.Delete(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishPostDeleted(ctx, post); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish post.deleted event",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "post deleted", slog.String("post_id", post.ID))
	return post, nil
}

// requireContent trims sender and message and rejects either being blank.
func requireContent(sender, message string) (string, string, error) {
	sender = strings.TrimSpace(sender)
	message = strings.TrimSpace(message)
	if sender == "" {
		return "", "", apperrors.InvalidInput("sender is required")
	}
	if message == "" {
		return "", "", apperrors.InvalidInput("message is required")
	}
	return sender, message, nil
}

// rejectBlank refuses a patch that would blank out a required field.
func rejectBlank(sender, message *string) error {
	if sender != nil && *sender == "" {
		return apperrors.InvalidInput("sender must not be empty")
	}
	if message != nil && *message == "" {
		return apperrors.InvalidInput("message must not be empty")
	}
	return nil
}
