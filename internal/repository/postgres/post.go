package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/pkg/database"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

const postColumns = "id, sender, message, created_by, created_at, updated_at"

// PostRepository implements repository.PostRepository using PostgreSQL.
type PostRepository struct {
	db database.DBTX
}

// NewPostRepository creates a new PostgreSQL-backed post repository.
func NewPostRepository(db database.DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// Find lists posts matching filter, oldest first.
func (r *PostRepository) Find(ctx context.Context, filter domain.PostFilter, page pagination.Params) (_ []*domain.Post, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Sender != "" {
		conditions = append(conditions, fmt.Sprintf("sender = $%d", argIndex))
		args = append(args, filter.Sender)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM posts
		%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		postColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "posts.find", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, page.PerPage, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var (
		posts      []*domain.Post
		totalCount int
	)
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(
			&p.ID,
			&p.Sender,
			&p.Message,
			&p.CreatedBy,
			&p.CreatedAt,
			&p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate post rows: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(posts) == 0 && page.Offset > 0 {
		countQuery := "SELECT count(*) FROM posts " + whereClause
		if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count posts: %w", err)
		}
	}

	return posts, totalCount, nil
}

// FindByID retrieves a post by its ID.
func (r *PostRepository) FindByID(ctx context.Context, id string) (_ *domain.Post, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("post", id)
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "posts.find_by_id", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanPost(r.db.QueryRow(ctx, query, id), id)
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, p *domain.Post) (err error) {
	query := `
		INSERT INTO posts (id, sender, message, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "posts.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Sender,
		p.Message,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// FindByIDAndUpdate applies the non-nil fields of patch and returns the
// updated post.
func (r *PostRepository) FindByIDAndUpdate(ctx context.Context, id string, patch domain.PostPatch) (_ *domain.Post, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("post", id)
	}

	query := `
		UPDATE posts
		SET sender = COALESCE($2, sender), message = COALESCE($3, message), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + postColumns

	ctx, end := database.TraceQuery(ctx, "posts.update", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanPost(r.db.QueryRow(ctx, query, id, patch.Sender, patch.Message), id)
}

// FindByIDAndDelete deletes a post, and through the foreign key its
// comments, returning the post as it was.
func (r *PostRepository) FindByIDAndDelete(ctx context.Context, id string) (_ *domain.Post, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("post", id)
	}

	query := `DELETE FROM posts WHERE id = $1 RETURNING ` + postColumns

	ctx, end := database.TraceQuery(ctx, "posts.delete", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanPost(r.db.QueryRow(ctx, query, id), id)
}

func scanPost(row pgx.Row, id string) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.Sender,
		&p.Message,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("post", id)
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	return &p, nil
}

// ignoreNoRows keeps not-found lookups from being recorded as span errors.
func ignoreNoRows(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
