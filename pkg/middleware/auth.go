package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/BlogGo/pkg/httputil"
	"github.com/utafrali/BlogGo/pkg/logger"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

const bearerPrefix = "Bearer "

// TokenVerifier validates an access token and returns the identity it names.
type TokenVerifier func(token string) (userID string, err error)

// Auth rejects requests without a valid `Authorization: Bearer <token>`
// header. Every rejection gets the same 401 body; the reason is only logged.
// On success the identity is available via UserIDFromContext.
func Auth(verify TokenVerifier, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				reject(w, r, l, slog.LevelDebug, "missing_header", nil)
				return
			}

			token, ok := strings.CutPrefix(header, bearerPrefix)
			if !ok {
				reject(w, r, l, slog.LevelDebug, "invalid_scheme", nil)
				return
			}
			if token == "" {
				reject(w, r, l, slog.LevelDebug, "empty_token", nil)
				return
			}

			userID, err := verify(token)
			if err != nil {
				reject(w, r, l, slog.LevelWarn, "invalid_token", err)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = logger.WithUserID(ctx, userID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID marks ctx as authenticated as userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated identity, or "" when the
// request did not pass through Auth.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func reject(w http.ResponseWriter, r *http.Request, l *slog.Logger, level slog.Level, reason string, err error) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.LogAttrs(r.Context(), level, "request authentication failed", attrs...)

	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorBody{
		Error: &httputil.ErrorResponse{
			Code:      "UNAUTHORIZED",
			Message:   "unauthorized",
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
