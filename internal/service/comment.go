package service

import (
	"context"
	"errors"
	"fmt"
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

// CreateCommentInput holds the client-supplied fields of a new comment.
type CreateCommentInput struct {
	PostID  string
	Sender  string
	Message string
}

// CommentService implements comment business logic.
type CommentService struct {
	comments *Resource[*domain.Comment, domain.CommentPatch, domain.CommentFilter]
	posts    repository.PostRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewCommentService creates a new comment service.
func NewCommentService(
	repo repository.CommentRepository,
	posts repository.PostRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: NewResource(repo, "comment", logger),
		posts:    posts,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CommentService) List(ctx context.Context, filter domain.CommentFilter, page pagination.Params) (pagination.Result[*domain.Comment], error) {
	return s.comments.List(ctx, filter, page)
}

func (s *CommentService) Get(ctx context.Context, id string) (*domain.Comment, error) {
	return s.comments.Get(ctx, id)
}

// Create stores a new comment owned by callerID on an existing post.
func (s *CommentService) Create(ctx context.Context, callerID string, in CreateCommentInput) (*domain.Comment, error) {
	postID := strings.TrimSpace(in.PostID)
	if postID == "" {
		return nil, apperrors.InvalidInput("postId is required")
	}
	sender, message, err := requireContent(in.Sender, in.Message)
	if err != nil {
		return nil, err
	}
	if callerID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("post", postID)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	now := s.now()
	comment, err := s.comments.Create(ctx, callerID, &domain.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		Sender:    sender,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishCommentCreated(ctx, comment); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish comment.created event",
			slog.String("comment_id", comment.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "comment created",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", comment.PostID),
	)
	return comment, nil
}

// Update applies patch if callerID created the comment.
func (s *CommentService) Update(ctx context.Context, callerID, id string, patch domain.CommentPatch) (*domain.Comment, error) {
	patch.Normalize()
	return s.comments.Update(ctx, callerID, id, patch, func(p domain.CommentPatch) error {
		return rejectBlank(p.Sender, p.Message)
	})
}

// Delete removes the comment if callerID created it.
func (s *CommentService) Delete(ctx context.Context, callerID, id string) (*domain.Comment, error) {
	comment, err := s.comments.Delete(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishCommentDeleted(ctx, comment); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish comment.deleted event",
			slog.String("comment_id", comment.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "comment deleted", slog.String("comment_id", comment.ID))
	return comment, nil
}
