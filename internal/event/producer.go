// Package event publishes blog domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/BlogGo/internal/domain"
	pkgkafka "github.com/utafrali/BlogGo/pkg/kafka"
	"github.com/utafrali/BlogGo/pkg/logger"
)

// Kafka topic constants for blog domain events.
const (
	TopicUserRegistered = "blog.user.registered"
	TopicPostCreated    = "blog.post.created"
	TopicPostDeleted    = "blog.post.deleted"
	TopicCommentCreated = "blog.comment.created"
	TopicCommentDeleted = "blog.comment.deleted"
)

// Aggregate type constants.
const (
	AggregateTypeUser    = "user"
	AggregateTypePost    = "post"
	AggregateTypeComment = "comment"
)

// SourceBlogService identifies events originating from this service.
const SourceBlogService = "blog-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PostData is the payload for post events.
type PostData struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	CreatedBy string `json:"created_by"`
}

// CommentData is the payload for comment events.
type CommentData struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	Sender    string `json:"sender"`
	CreatedBy string `json:"created_by"`
}

// Publisher writes an envelope to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes blog domain events. A Producer without a Publisher
// drops every event, which is how Kafka is disabled.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. pub may be nil.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  pub,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{ID: user.ID, Email: user.Email}
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishPostCreated publishes a post.created event.
func (p *Producer) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, TopicPostCreated, post.ID, AggregateTypePost, postData(post))
}

// PublishPostDeleted publishes a post.deleted event.
func (p *Producer) PublishPostDeleted(ctx context.Context, post *domain.Post) error {
	return p.publish(ctx, TopicPostDeleted, post.ID, AggregateTypePost, postData(post))
}

// PublishCommentCreated publishes a comment.created event.
func (p *Producer) PublishCommentCreated(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, TopicCommentCreated, c.ID, AggregateTypeComment, commentData(c))
}

// PublishCommentDeleted publishes a comment.deleted event.
func (p *Producer) PublishCommentDeleted(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, TopicCommentDeleted, c.ID, AggregateTypeComment, commentData(c))
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceBlogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

func postData(p *domain.Post) PostData {
	return PostData{ID: p.ID, Sender: p.Sender, CreatedBy: p.CreatedBy}
}

func commentData(c *domain.Comment) CommentData {
	return CommentData{ID: c.ID, PostID: c.PostID, Sender: c.Sender, CreatedBy: c.CreatedBy}
}
