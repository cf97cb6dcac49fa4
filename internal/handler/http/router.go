// Package http exposes the blog service over a chi router.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/BlogGo/internal/service"
	"github.com/utafrali/BlogGo/pkg/health"
	"github.com/utafrali/BlogGo/pkg/middleware"
)

// RouterConfig carries the transport settings of NewRouter.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	// PublicCacheMaxAge, when positive, marks public GET responses cacheable.
	PublicCacheMaxAge int
}

// NewRouter creates a chi router with all blog routes registered.
func NewRouter(
	sessions *service.SessionService,
	posts *service.PostService,
	comments *service.CommentService,
	verify middleware.TokenVerifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	requireAuth := middleware.Auth(verify, logger)
	public := func(next http.Handler) http.Handler { return next }
	if cfg.PublicCacheMaxAge > 0 {
		public = middleware.CacheControl(cfg.PublicCacheMaxAge)
	}

	// Session endpoints (public)
	authHandler := NewAuthHandler(sessions, logger)
	r.Route("/users", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.RefreshToken)
		r.Post("/logout", authHandler.Logout)
	})

	postHandler := NewPostHandler(posts, logger)
	r.Route("/posts", func(r chi.Router) {
		r.With(public).Get("/", postHandler.List)
		r.With(public).Get("/{id}", postHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", postHandler.Create)
			r.Put("/{id}", postHandler.Update)
			r.Delete("/{id}", postHandler.Delete)
		})
	})

	commentHandler := NewCommentHandler(comments, logger)
	r.Route("/comments", func(r chi.Router) {
		r.With(public).Get("/", commentHandler.List)
		r.With(public).Get("/{id}", commentHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", commentHandler.Create)
			r.Post("/{id}", commentHandler.Create)
			r.Put("/{id}", commentHandler.Update)
			r.Delete("/{id}", commentHandler.Delete)
		})
	})

	return r
}
