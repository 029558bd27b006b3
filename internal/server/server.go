// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	_ "bookclub/docs" // swagger docs
	"bookclub/internal/cache"
	"bookclub/internal/config"
	"bookclub/internal/database"
	"bookclub/internal/middleware"
	"bookclub/internal/models"
	"bookclub/internal/notifications"
	"bookclub/internal/repository"
	"bookclub/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// the notifier and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo   repository.UserRepository
	groupRepo  repository.GroupRepository
	threadRepo repository.ThreadRepository
	postRepo   repository.PostRepository

	notifier    *notifications.Notifier
	hub         *notifications.Hub
	listenerHub *notifications.ListenerHub
	hubs        []wireableHub

	userService     *service.UserService
	groupService    *service.GroupService
	threadService   *service.ThreadService
	postService     *service.PostService
	imageService    *service.ImageService
	snapshotService *service.SnapshotService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: change notices then fan out in-process and
// tickets, token revocation and rate limits are unavailable.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("config and database are required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("bookclub-api"),
		userRepo:       repository.NewUserRepository(db),
		groupRepo:      repository.NewGroupRepository(db),
		threadRepo:     repository.NewThreadRepository(db),
		postRepo:       repository.NewPostRepository(db),
	}

	s.notifier = notifications.NewNotifier(redisClient)
	s.userService = service.NewUserService(s.userRepo, s.groupRepo, s.notifier)
	s.groupService = service.NewGroupService(s.groupRepo, s.notifier)
	s.threadService = service.NewThreadService(s.groupRepo, s.threadRepo, s.userRepo, s.notifier)
	s.postService = service.NewPostService(s.postRepo, s.userRepo, s.notifier)
	s.imageService = service.NewImageService(cfg)
	s.snapshotService = service.NewSnapshotService(s.userRepo, s.groupRepo, s.threadRepo, s.postRepo)

	s.hub = notifications.NewHub()
	s.listenerHub = notifications.NewListenerHub(s.snapshotService, cfg.ListenRatePerSec)
	s.hubs = []wireableHub{s.hub, s.listenerHub}

	return s, nil
}

// Notifier returns the change notifier shared by services, hubs and jobs.
func (s *Server) Notifier() *notifications.Notifier {
	return s.notifier
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())
	app.Use(middleware.TracingMiddleware())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/media", s.imageService.UploadDir(), fiber.Static{MaxAge: 86400})

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.Rule{Name: "signup", Limit: 3, Window: 10 * time.Minute}), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/refresh", s.AuthRequired(), s.Refresh)

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/me/avatar", middleware.RateLimit(s.redis, middleware.Rule{Name: "upload", Limit: 10, Window: 10 * time.Minute}), s.UploadAvatar)
	users.Get("/me/groups", s.GetMyGroups)
	users.Get("/:id", s.GetUserProfile)

	groups := protected.Group("/groups")
	groups.Get("/", s.GetGroups)
	groups.Get("/search", middleware.RateLimit(s.redis, middleware.Rule{Name: "search", Limit: 30, Window: time.Minute}), s.SearchGroups)
	groups.Post("/", middleware.RateLimit(s.redis, middleware.Rule{Name: "create_group", Limit: 5, Window: 10 * time.Minute}), s.CreateGroup)
	// Specific /:id/:resource routes before the generic /:id routes.
	groups.Get("/:id/question", s.GetModerationQuestion)
	groups.Post("/:id/join", middleware.RateLimit(s.redis, middleware.Rule{Name: "join_group", Limit: 10, Window: 5 * time.Minute, Param: "id"}), s.JoinGroup)
	groups.Post("/:id/leave", s.LeaveGroup)
	groups.Post("/:id/moderators/:userId", s.PromoteModerator)
	groups.Delete("/:id/moderators/:userId", s.DemoteModerator)
	groups.Delete("/:id/members/:userId", s.RemoveMember)
	groups.Post("/:id/cover", middleware.RateLimit(s.redis, middleware.Rule{Name: "upload", Limit: 10, Window: 10 * time.Minute}), s.UploadGroupCover)

	threads := groups.Group("/:id/threads")
	threads.Get("/", s.GetThreads)
	threads.Post("/", middleware.RateLimit(s.redis, middleware.Rule{Name: "create_thread", Limit: 10, Window: time.Minute, Param: "id"}), s.CreateThread)
	threads.Get("/:threadId/replies", s.GetReplies)
	threads.Post("/:threadId/replies", middleware.RateLimit(s.redis, middleware.Rule{Name: "create_reply", Limit: 20, Window: time.Minute, Param: "id"}), s.CreateReply)
	threads.Delete("/:threadId/replies/:replyId", s.DeleteReply)
	threads.Get("/:threadId/likes", s.GetLikes)
	threads.Post("/:threadId/like", s.LikeThread)
	threads.Delete("/:threadId/like", s.UnlikeThread)
	threads.Get("/:threadId", s.GetThread)
	threads.Put("/:threadId", s.UpdateThread)
	threads.Delete("/:threadId", s.DeleteThread)

	groups.Get("/:id", s.GetGroup)
	groups.Put("/:id", s.UpdateGroup)
	groups.Delete("/:id", s.DeleteGroup)

	posts := protected.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", middleware.RateLimit(s.redis, middleware.Rule{Name: "create_post", Limit: 5, Window: 5 * time.Minute}), s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	protected.Get("/docs/*", s.GetDocuments)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())
	ws.Get("/listen", s.ListenHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"listeners": s.listenerHub.ListenerCount(),
		"time":      time.Now(),
	})
}

// App returns the Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	bodyLimit := (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024
	if bodyLimit <= 1024*1024 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:   "Bookclub API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start serves HTTP on the configured port until shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.config.Port, err)
	}
	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.Serve(ln)
}

// Serve wires the hubs to the notifier and serves HTTP on ln.
func (s *Server) Serve(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	for _, h := range s.hubs {
		if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
		}
	}

	return app.Listener(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
