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

// CommentHandler handles HTTP requests for comment endpoints.
type CommentHandler struct {
	service *service.CommentService
	logger  *slog.Logger
}

// NewCommentHandler creates a new comment HTTP handler.
func NewCommentHandler(svc *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{service: svc, logger: logger}
}

// CreateCommentRequest is the JSON body for creating a comment. postId may be
// omitted when the post id is in the path.
type CreateCommentRequest struct {
	PostID  string `json:"postId"`
	Sender  string `json:"sender" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// UpdateCommentRequest is the JSON body for a partial comment update.
type UpdateCommentRequest struct {
	Sender    *string `json:"sender"`
	Message   *string `json:"message"`
	CreatedBy *string `json:"createdBy"`
}

// List handles GET /comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.CommentFilter{PostID: q.Get("postId"), Sender: q.Get("sender")}

	result, err := h.service.List(r.Context(), filter, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Get handles GET /comments/{id}
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	comment, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Create handles POST /comments and POST /comments/{id}, where {id} is the
// post being commented on.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	postID := req.PostID
	if postID == "" {
		postID = chi.URLParam(r, "id")
	}

	comment, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), service.CreateCommentInput{
		PostID:  postID,
		Sender:  req.Sender,
		Message: req.Message,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Update handles PUT /comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCommentRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	comment, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), domain.CommentPatch{
		Sender:    req.Sender,
		Message:   req.Message,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Delete handles DELETE /comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	comment, err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}
