package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/BlogGo/internal/ownership"
	"github.com/utafrali/BlogGo/internal/repository"
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
	"github.com/utafrali/BlogGo/pkg/pagination"
)

// Resource is the CRUD surface shared by posts and comments. Reads are
// public; every mutation goes through the ownership checks.
type Resource[T ownership.Stampable, P ownership.CreatorPatch, F any] struct {
	store  repository.Store[T, P, F]
	name   string
	logger *slog.Logger
}

// NewResource creates a resource helper over store. name is used in error
// messages, log attributes and metrics.
func NewResource[T ownership.Stampable, P ownership.CreatorPatch, F any](store repository.Store[T, P, F], name string, logger *slog.Logger) *Resource[T, P, F] {
	return &Resource[T, P, F]{store: store, name: name, logger: logger}
}

// List returns one page of records matching filter.
func (r *Resource[T, P, F]) List(ctx context.Context, filter F, page pagination.Params) (pagination.Result[T], error) {
	items, total, err := r.store.Find(ctx, filter, page)
	if err != nil {
		return pagination.Result[T]{}, fmt.Errorf("list %ss: %w", r.name, err)
	}
	return pagination.NewResult(items, total, page), nil
}

// Get returns a record by id.
func (r *Resource[T, P, F]) Get(ctx context.Context, id string) (T, error) {
	rec, err := r.store.FindByID(ctx, id)
	if err != nil {
		var zero T
		return zero, r.wrap("get", err)
	}
	return rec, nil
}

// Create stamps rec with callerID as its creator and stores it.
func (r *Resource[T, P, F]) Create(ctx context.Context, callerID string, rec T) (T, error) {
	var zero T
	if err := ownership.Stamp(callerID, rec); err != nil {
		return zero, err
	}
	if err := r.store.Create(ctx, rec); err != nil {
		return zero, r.wrap("create", err)
	}

	recordMutations.WithLabelValues(r.name, "create").Inc()
	return rec, nil
}

// Update applies patch to the record if callerID created it. validate, when
// non-nil, runs only after the ownership checks pass.
func (r *Resource[T, P, F]) Update(ctx context.Context, callerID, id string, patch P, validate func(P) error) (T, error) {
	var zero T
	current, err := r.store.FindByID(ctx, id)
	if err != nil {
		return zero, r.wrap("get", err)
	}
	if err := ownership.AuthorizeUpdate(callerID, current, patch); err != nil {
		r.denied(ctx, "update", callerID, id, err)
		return zero, err
	}
	if validate != nil {
		if err := validate(patch); err != nil {
			return zero, err
		}
	}

	updated, err := r.store.FindByIDAndUpdate(ctx, id, patch)
	if err != nil {
		return zero, r.wrap("update", err)
	}

	recordMutations.WithLabelValues(r.name, "update").Inc()
	return updated, nil
}

// Delete removes the record if callerID created it and returns it as it was.
func (r *Resource[T, P, F]) Delete(ctx context.Context, callerID, id string) (T, error) {
	var zero T
	current, err := r.store.FindByID(ctx, id)
	if err != nil {
		return zero, r.wrap("get", err)
	}
	if err := ownership.Authorize(callerID, current); err != nil {
		r.denied(ctx, "delete", callerID, id, err)
		return zero, err
	}

	deleted, err := r.store.FindByIDAndDelete(ctx, id)
	if err != nil {
		return zero, r.wrap("delete", err)
	}

	recordMutations.WithLabelValues(r.name, "delete").Inc()
	return deleted, nil
}

func (r *Resource[T, P, F]) denied(ctx context.Context, action, callerID, id string, err error) {
	if !errors.Is(err, apperrors.ErrForbidden) {
		return
	}
	r.logger.WarnContext(ctx, "ownership check failed",
		slog.String("resource", r.name),
		slog.String("action", action),
		slog.String("id", id),
		slog.String("caller_id", callerID),
	)
}

// wrap passes application errors through and adds context to store errors.
func (r *Resource[T, P, F]) wrap(action string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s %s: %w", action, r.name, err)
}
