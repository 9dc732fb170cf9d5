// Package server contains the HTTP and WebSocket handlers for the moderation API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "warden/docs" // swagger docs
	"warden/internal/cache"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/featureflags"
	"warden/internal/middleware"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/repository"
	"warden/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// globalRateLimit is the per-IP request budget per minute.
const globalRateLimit = 300

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	moderationService *service.ModerationService
	reportingService  *service.ReportingService
	reportService     *service.ReportService
	userService       *service.UserService
}

// NewServer connects to the database and Redis, then wires the services.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it the stats cache, rate limits and the
	// admin stream are disabled.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	engine, err := cfg.PolicyEngine()
	if err != nil {
		return nil, fmt.Errorf("moderation policy: %w", err)
	}

	middleware.InitMiddleware(cfg)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("warden-api"),
		userRepo:       repository.NewUserRepository(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// A nil *Notifier must not leak into the interface.
	var notifier service.ModerationNotifier
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		server.hub.SetPresence(notifications.NewPresence(redisClient, 0))
		notifier = server.notifier
	}

	server.moderationService = service.NewModerationService(db, service.ModerationServiceConfig{
		Engine:          engine,
		Notifier:        notifier,
		Flags:           server.featureFlags,
		Cascader:        repository.NewContentRepository(db),
		MaxRetries:      cfg.ModerationMaxRetries,
		BulkConcurrency: cfg.ModerationBulkConcurrency,
	})
	server.reportingService = service.NewReportingService(db,
		time.Duration(cfg.ModerationStatsCacheSeconds)*time.Second)
	server.reportService = service.NewReportService(db, server.userRepo, notifier)
	server.userService = service.NewUserService(db, server.userRepo, notifier, server.featureFlags)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Propagates request and user IDs into the request context.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRateLimit,
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
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Warden Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Live admin events. Browsers pass the token as a query parameter, so
	// this is registered ahead of the header-only auth group.
	api.Get("/ws/admin", middleware.WebSocketAuthRequired, s.AdminRequired(), s.AdminStreamUpgrade, s.AdminStreamHandler())

	// Report filing
	protected := api.Group("", middleware.AuthRequired)
	protected.Post("/groups/:id/report", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "report_group"), s.ReportGroup)
	protected.Post("/posts/:id/report", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "report_post"), s.ReportPost)
	protected.Get("/users/me", s.GetMyProfile)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)

	// Static segments are registered before the :kind/:id patterns they overlap.
	moderation := admin.Group("/moderation")
	moderation.Get("/audit", s.GetModerationAudit)
	moderation.Get("/online", s.GetOnlineModerators)
	moderation.Get("/groups/:id/warnings", s.GetGroupWarnings)
	moderation.Post("/groups/:id/warnings", s.SendGroupWarning)
	moderation.Get("/:kind/reports", s.GetGroupedReports)
	moderation.Get("/:kind/stats", s.GetModerationStats)
	moderation.Post("/:kind/investigate/bulk", s.BulkMarkInvestigating)
	moderation.Post("/:kind/:id/dismiss", s.DismissPendingReports)
	moderation.Post("/:kind/:id/investigate", s.MarkInvestigating)
	moderation.Post("/:kind/:id/delete", s.DeleteForSevereViolation)

	admin.Post("/reports/:id/review", s.ReviewReport)

	adminUsers := admin.Group("/users")
	adminUsers.Get("/", s.GetAllUsers)
	adminUsers.Get("/admins", s.GetAdmins)
	adminUsers.Post("/:id/ban", s.BanUser)
	adminUsers.Post("/:id/unban", s.UnbanUser)
	adminUsers.Get("/:id", s.GetUserProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis backs caching and events but moderation works without it.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.isAdmin(c, userID)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Warden Moderation API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stops the pub/sub subscriber.
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
