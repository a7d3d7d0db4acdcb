// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/middleware"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/tasks"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// sharedHTTPMetrics returns the process-wide request collectors. They can only
// be registered with the default registry once.
func sharedHTTPMetrics() *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New("quill-api")
	})
	return httpMetrics
}

// Server owns the Fiber app and everything its handlers depend on.
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	app    *fiber.App
	prom   *fiberprometheus.FiberPrometheus

	// cancelled on Shutdown; scopes the realtime subscriber
	stop context.CancelFunc

	taxonomyRepo repository.TaxonomyRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	views        *service.ViewCounter
	viewSync     *tasks.ViewSyncTask

	postService    *service.PostService
	commentService *service.CommentService
	userService    *service.UserService
}

// NewServer builds the service graph over an open database and an optional
// Redis client. Without Redis there is no caching, no realtime feed and no
// buffered view counting.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	var store *cache.Store
	if rdb != nil {
		store = cache.NewStore(rdb)
	}
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        rdb,
		prom:         sharedHTTPMetrics(),
		taxonomyRepo: repository.NewTaxonomyRepository(db, store),
		views:        service.NewViewCounter(cfg.ViewCounterMode, posts, rdb),
	}

	// events stays a nil interface without Redis; a typed nil *Notifier
	// would look like a live publisher to the services.
	var events service.EventPublisher
	if rdb != nil {
		s.notifier = notifications.NewNotifier(rdb)
		s.hub = notifications.NewHub()
		events = s.notifier
		if s.views.Mode() == config.ViewCounterBuffered {
			s.viewSync = tasks.NewViewSyncTask(rdb, posts, cfg.ViewSyncSchedule)
		}
	}

	s.postService = service.NewPostService(posts, comments, s.taxonomyRepo, s.views, events)
	s.commentService = service.NewCommentService(comments, posts, events)
	s.userService = service.NewUserService(
		repository.NewUserRepository(db, store),
		cfg.JWTSecret,
		time.Duration(cfg.JWTTTLHours)*time.Hour,
	)

	s.app = fiber.New(fiber.Config{
		AppName:      "Quill API",
		BodyLimit:    1 << 20,
		ErrorHandler: ErrorHandler(cfg.IsDevelopment()),
	})
	s.mountMiddleware(s.app)
	s.mountRoutes(s.app)
	return s, nil
}

// App exposes the configured Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start subscribes the hub to cross-instance events, starts the view flush
// schedule, then blocks serving HTTP.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	if s.hub != nil {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			// the API still works; clients just miss live updates
			middleware.Logger.Error("realtime subscriber failed", slog.String("error", err.Error()))
		}
	}
	if s.viewSync != nil {
		if err := s.viewSync.Start(); err != nil {
			cancel()
			return err
		}
	}

	middleware.Logger.Info("listening", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, disconnects websocket clients and waits
// for background view writes, all bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}

	var firstErr error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		firstErr = err
		middleware.Logger.Error("http shutdown", slog.String("error", err.Error()))
	}
	if s.hub != nil {
		_ = s.hub.Shutdown(ctx)
	}

	// the flush job needs the database, which the caller closes after us
	if s.viewSync != nil {
		select {
		case <-s.viewSync.Stop().Done():
		case <-ctx.Done():
			middleware.Logger.Warn("view sync still running at shutdown deadline")
		}
	}
	s.views.Wait()
	if s.viewSync != nil {
		if n, err := s.viewSync.RunOnce(ctx); err != nil {
			middleware.Logger.Error("final view sync failed", slog.String("error", err.Error()))
		} else if n > 0 {
			middleware.Logger.Info("flushed buffered views", slog.Int("posts", n))
		}
	}

	middleware.Logger.Info("server stopped")
	return firstErr
}
