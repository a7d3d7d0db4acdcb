package server

import (
	"strings"
	"time"

	"quill/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
)

const (
	defaultOrigins    = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	globalLimitPerMin = 100
)

var corsHeaders = []string{
	fiber.HeaderOrigin,
	fiber.HeaderContentType,
	fiber.HeaderAccept,
	fiber.HeaderAuthorization,
	fiber.HeaderUpgrade,
	fiber.HeaderConnection,
	"Sec-WebSocket-Key",
	"Sec-WebSocket-Version",
}

// mountMiddleware installs the global chain. Order matters: tracing must
// exist before the context middleware copies its ID, and CORS must run before
// anything that can short-circuit so error responses stay readable by browsers.
func (s *Server) mountMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     strings.Join(corsHeaders, ", "),
		AllowCredentials: origins != "*",
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	app.Use(limiter.New(limiter.Config{
		Max:          globalLimitPerMin,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(*fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}))
}

// writeLimit throttles a mutating endpoint per user. It is a pass-through
// when the limit is zero or Redis is absent.
func (s *Server) writeLimit(name string) fiber.Handler {
	if s.config.WriteRateLimitPerMinute <= 0 || s.redis == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(s.redis, s.config.WriteRateLimitPerMinute, time.Minute, name)
}

func (s *Server) mountRoutes(app *fiber.App) {
	for _, prefix := range []string{"", "/api"} {
		app.Get(prefix+"/health/live", s.LivenessCheck)
		app.Get(prefix+"/health/ready", s.ReadinessCheck)
	}
	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/profile", middleware.AuthRequired, s.GetProfile)
	auth.Put("/profile", middleware.AuthRequired, s.UpdateProfile)

	// reads take an optional token so "liked" reflects the caller
	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth, s.GetPosts)
	posts.Get("/:id", middleware.OptionalAuth, s.GetPost)
	posts.Post("/", middleware.AuthRequired, s.writeLimit("create_post"), s.CreatePost)
	posts.Post("/:id/like", middleware.AuthRequired, s.writeLimit("like_post"), s.ToggleLike)
	posts.Put("/:id", middleware.AuthRequired, s.writeLimit("update_post"), s.UpdatePost)
	posts.Delete("/:id", middleware.AuthRequired, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/post/:postId", middleware.OptionalAuth, s.GetComments)
	comments.Post("/", middleware.AuthRequired, s.writeLimit("create_comment"), s.CreateComment)
	comments.Put("/:id", middleware.AuthRequired, s.writeLimit("update_comment"), s.UpdateComment)
	comments.Delete("/:id", middleware.AuthRequired, s.DeleteComment)

	api.Get("/tags", s.GetTags)
	api.Get("/categories", s.GetCategories)

	api.Get("/ws", middleware.WebSocketAuthRequired, s.WebsocketHandler())
}
