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

const commentColumns = "id, post_id, sender, message, created_by, created_at, updated_at"

// CommentRepository implements repository.CommentRepository using PostgreSQL.
type CommentRepository struct {
	db database.DBTX
}

// NewCommentRepository creates a new PostgreSQL-backed comment repository.
func NewCommentRepository(db database.DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// Find lists comments matching filter, oldest first. A post id that is not a
// UUID matches nothing.
func (r *CommentRepository) Find(ctx context.Context, filter domain.CommentFilter, page pagination.Params) (_ []*domain.Comment, _ int, err error) {
	if filter.PostID != "" && !validID(filter.PostID) {
		return nil, 0, nil
	}

	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.PostID != "" {
		conditions = append(conditions, fmt.Sprintf("post_id = $%d", argIndex))
		args = append(args, filter.PostID)
		argIndex++
	}

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
		FROM comments
		%s
		ORDER BY created_at ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		commentColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "comments.find", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, page.PerPage, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var (
		comments   []*domain.Comment
		totalCount int
	)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(
			&c.ID,
			&c.PostID,
			&c.Sender,
			&c.Message,
			&c.CreatedBy,
			&c.CreatedAt,
			&c.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comment rows: %w", err)
	}

	if len(comments) == 0 && page.Offset > 0 {
		countQuery := "SELECT count(*) FROM comments " + whereClause
		if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count comments: %w", err)
		}
	}

	return comments, totalCount, nil
}

// FindByID retrieves a comment by its ID.
func (r *CommentRepository) FindByID(ctx context.Context, id string) (_ *domain.Comment, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("comment", id)
	}

	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "comments.find_by_id", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanComment(r.db.QueryRow(ctx, query, id), id)
}

// Create inserts a new comment. A post that no longer exists is reported as
// not found.
func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) (err error) {
	if !validID(c.PostID) {
		return apperrors.NotFound("post", c.PostID)
	}

	query := `
		INSERT INTO comments (id, post_id, sender, message, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "comments.create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		c.ID,
		c.PostID,
		c.Sender,
		c.Message,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("post", c.PostID)
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// FindByIDAndUpdate applies the non-nil fields of patch and returns the
// updated comment. post_id and created_by are never written.
func (r *CommentRepository) FindByIDAndUpdate(ctx context.Context, id string, patch domain.CommentPatch) (_ *domain.Comment, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("comment", id)
	}

	query := `
		UPDATE comments
		SET sender = COALESCE($2, sender), message = COALESCE($3, message), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + commentColumns

	ctx, end := database.TraceQuery(ctx, "comments.update", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanComment(r.db.QueryRow(ctx, query, id, patch.Sender, patch.Message), id)
}

// FindByIDAndDelete deletes a comment and returns it as it was.
func (r *CommentRepository) FindByIDAndDelete(ctx context.Context, id string) (_ *domain.Comment, err error) {
	if !validID(id) {
		return nil, apperrors.NotFound("comment", id)
	}

	query := `DELETE FROM comments WHERE id = $1 RETURNING ` + commentColumns

	ctx, end := database.TraceQuery(ctx, "comments.delete", query)
	defer func() { end(ignoreNoRows(err)) }()

	return scanComment(r.db.QueryRow(ctx, query, id), id)
}

func scanComment(row pgx.Row, id string) (*domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.Sender,
		&c.Message,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("comment", id)
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}

	return &c, nil
}
