package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/socialhub/apiserver/config"
	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/internal/db"
	"github.com/socialhub/apiserver/internal/events"
	"github.com/socialhub/apiserver/internal/handlers"
	"github.com/socialhub/apiserver/internal/metrics"
	"github.com/socialhub/apiserver/internal/middleware"
	"github.com/socialhub/apiserver/internal/mq"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/internal/storage"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/internal/store/memory"
	"github.com/socialhub/apiserver/internal/store/mongostore"
)

var (
	_ services.UserRepository    = (*store.UserRepository)(nil)
	_ services.PostRepository    = (*store.PostRepository)(nil)
	_ services.CommentRepository = (*store.CommentRepository)(nil)
)

// Repositories is one storage backend's implementation of the services'
// persistence interfaces.
type Repositories struct {
	Users    services.UserRepository
	Posts    services.PostRepository
	Comments services.CommentRepository
	// Repairer is set for backends whose follow lists can drift.
	Repairer services.RelationshipRepairer
	Close    func(ctx context.Context) error
}

// OpenRepositories connects the backend selected by cfg.DBDriver.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Repositories{}, err
		}
		return Repositories{
			Users:    store.NewUserRepository(conn),
			Posts:    store.NewPostRepository(conn),
			Comments: store.NewCommentRepository(conn),
			Close:    func(context.Context) error { return conn.Close() },
		}, nil
	case config.DriverMongo:
		mdb, err := mongostore.Open(ctx, cfg.Mongo)
		if err != nil {
			return Repositories{}, err
		}
		return Repositories{
			Users:    mdb.Users(),
			Posts:    mdb.Posts(),
			Comments: mdb.Comments(),
			Repairer: mdb,
			Close:    mdb.Close,
		}, nil
	case config.DriverMemory:
		return MemoryRepositories(memory.New()), nil
	default:
		return Repositories{}, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

// MemoryRepositories wraps an in-memory store.
func MemoryRepositories(mdb *memory.DB) Repositories {
	return Repositories{
		Users:    mdb.Users(),
		Posts:    mdb.Posts(),
		Comments: mdb.Comments(),
		Repairer: mdb,
		Close:    func(context.Context) error { return nil },
	}
}

// Deps are the collaborators the HTTP router is assembled from.
type Deps struct {
	Repos     Repositories
	Media     *storage.Storage
	Issuer    *auth.Issuer
	Queue     *mq.MQ
	Channel   string
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
	RateLimit config.RateLimitConfig
	// TrustProxy enables chi's RealIP, so forwarded headers decide the
	// client address seen by logging and the rate limiter.
	TrustProxy bool
}

// NewRouter wires services and handlers onto a chi router.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := d.Metrics
	gatherer := d.Gatherer
	if collector == nil {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(registry)
		gatherer = registry
	}

	opts := services.Options{Metrics: collector}
	if d.Queue != nil {
		opts.Events = events.NewPublisher(d.Queue, d.Channel, logger, collector)
	}

	userService := services.NewUserService(d.Repos.Users, opts)
	postService := services.NewPostService(d.Repos.Posts, d.Repos.Comments, userService, opts)
	commentService := services.NewCommentService(d.Repos.Comments, d.Repos.Posts, userService, opts)

	common := handlers.Common{
		Logger:       logger,
		AuthFailures: collector,
		Media:        d.Media,
	}

	var limit func(http.Handler) http.Handler
	if d.RateLimit.AuthPerMinute > 0 {
		limit = middleware.NewRateLimiter(d.RateLimit.AuthPerMinute, d.RateLimit.AuthBurst).Middleware
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	if d.TrustProxy {
		router.Use(chimiddleware.RealIP)
	}
	router.Use(
		chimiddleware.Recoverer,
		d.Issuer.Middleware,
		middleware.Logging(logger, collector),
		chimiddleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	if gatherer != nil {
		router.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, postService, d.Issuer, common), limit)
	})
	router.Route("/api/posts", func(r chi.Router) {
		handlers.PostRouter(r, handlers.NewPostHandler(postService, common))
	})
	router.Route("/api/comments", func(r chi.Router) {
		handlers.CommentRouter(r, handlers.NewCommentHandler(commentService, common))
	})
	router.Route(strings.TrimSuffix(storage.PublicPrefix, "/"), func(r chi.Router) {
		handlers.UploadRouter(r, handlers.NewUploadHandler(common))
	})
	router.NotFound(handlers.NotFound)

	return router
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	repos      Repositories
	queue      *mq.MQ
	notifier   *events.Notifier
	stop       context.CancelFunc
}

// New opens every configured backend and builds the Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	repos, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	media, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.Queue)
	if err != nil {
		_ = repos.Close(ctx)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	router := NewRouter(Deps{
		Repos:      repos,
		Media:      media,
		Issuer:     issuer,
		Queue:      queue,
		Channel:    cfg.Queue.Channel,
		Logger:     logger,
		Metrics:    collector,
		Gatherer:   registry,
		RateLimit:  cfg.RateLimit,
		TrustProxy: cfg.TrustProxy,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srv := &Server{
		httpServer: httpServer,
		router:     router,
		logger:     logger,
		repos:      repos,
		queue:      queue,
	}
	// The in-process queue has no external consumer, so the server runs one.
	if cfg.Queue.Backend == config.QueueLocal {
		srv.notifier = events.NewNotifier(queue, cfg.Queue.Channel, logger)
	}
	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	if s.notifier != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		go func() {
			if err := s.notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("notifier stopped", slog.String("error", err.Error()))
			}
		}()
	}

	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.stop != nil {
		s.stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.repos.Close != nil {
		if closeErr := s.repos.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
