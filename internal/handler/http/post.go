package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/BlogGo/internal/domain"
	"github.com/utafrali/BlogGo/internal/service"
	"github.com/utafrali/BlogGo/pkg/httputil"
	"github.com/utafrali/BlogGo/pkg/middleware"
	"github.com/utafrali/BlogGo/pkg/pagination"
	"github.com/utafrali/BlogGo/pkg/validator"
)

// PostHandler handles HTTP requests for post endpoints.
type PostHandler struct {
	service *service.PostService
	logger  *slog.Logger
}

// NewPostHandler creates a new post HTTP handler.
func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{service: svc, logger: logger}
}

// CreatePostRequest is the JSON body for creating a post. A createdBy field
// in the body is ignored.
type CreatePostRequest struct {
	Sender  string `json:"sender" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// UpdatePostRequest is the JSON body for a partial post update.
type UpdatePostRequest struct {
	Sender    *string `json:"sender"`
	Message   *string `json:"message"`
	CreatedBy *string `json:"createdBy"`
}

// List handles GET /posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.PostFilter{Sender: r.URL.Query().Get("sender")}

	result, err := h.service.List(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Get handles GET /posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Create handles POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	post, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), service.CreatePostInput{
		Sender:  req.Sender,
		Message: req.Message,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Update handles PUT /posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdatePostRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	post, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), domain.PostPatch{
		Sender:    req.Sender,
		Message:   req.Message,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}
