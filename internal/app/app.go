// Package app wires the blog service together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/BlogGo/internal/auth"
	"github.com/utafrali/BlogGo/internal/config"
	"github.com/utafrali/BlogGo/internal/event"
	handler "github.com/utafrali/BlogGo/internal/handler/http"
	"github.com/utafrali/BlogGo/internal/ratelimit"
	"github.com/utafrali/BlogGo/internal/repository"
	"github.com/utafrali/BlogGo/internal/repository/memory"
	"github.com/utafrali/BlogGo/internal/repository/postgres"
	"github.com/utafrali/BlogGo/internal/service"
	"github.com/utafrali/BlogGo/migrations"
	"github.com/utafrali/BlogGo/pkg/database"
	"github.com/utafrali/BlogGo/pkg/health"
	pkgkafka "github.com/utafrali/BlogGo/pkg/kafka"
	"github.com/utafrali/BlogGo/pkg/middleware"
	"github.com/utafrali/BlogGo/pkg/tracing"
)

// App wires together all dependencies and runs the blog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// stores is the repository set of one storage backend.
type stores struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	ping     health.Checker
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	st, err := a.openStores(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.Register(cfg.StorageBackend, st.ping)

	limiter := a.loginLimiter(ctx, healthHandler)

	// A nil interface, not a nil *pkgkafka.Producer, disables publishing.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("create token issuer: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	sessions := service.NewSessionService(st.users, hasher, tokens, limiter, eventProducer, logger)
	posts := service.NewPostService(st.posts, eventProducer, logger)
	comments := service.NewCommentService(st.comments, st.posts, eventProducer, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(sessions, posts, comments, tokens.VerifyAccess, healthHandler, logger, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		PublicCacheMaxAge: cfg.PublicCacheMaxAge,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.StorageBackend == config.StorageMemory {
		a.logger.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return stores{
			users:    store.Users(),
			posts:    store.Posts(),
			comments: store.Comments(),
			ping:     store.Ping,
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres(), a.logger)
	if err != nil {
		return stores{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, a.cfg.ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return stores{}, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)
	}

	return stores{
		users:    postgres.NewUserRepository(pool),
		posts:    postgres.NewPostRepository(pool),
		comments: postgres.NewCommentRepository(pool),
		ping:     pool.Ping,
	}, nil
}

// loginLimiter connects to Redis when throttling is enabled. Throttling is
// advisory, so an unreachable Redis disables it instead of failing startup.
func (a *App) loginLimiter(ctx context.Context, h *health.Handler) ratelimit.Limiter {
	if !a.cfg.LoginRateLimitEnabled {
		return ratelimit.Noop{}
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		a.logger.Warn("redis unavailable, login throttling disabled",
			slog.String("addr", a.cfg.Redis().Addr()),
			slog.String("error", err.Error()),
		)
		return ratelimit.Noop{}
	}
	a.redis = client
	h.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

	return ratelimit.NewLoginLimiter(client, a.cfg.LoginMaxFailures, a.cfg.LoginFailureWindow)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains HTTP requests first, then flushes spans, then closes the
// Kafka producer, Redis and the PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errs
}
