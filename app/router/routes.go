// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/app/handlers"
	"github.com/amirphl/campaign-dispatcher/app/middleware"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Config tunes the HTTP surface
type Config struct {
	AppName         string
	AllowedOrigins  []string
	BodyLimit       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	MetricsEnabled  bool
	MetricsPath     string
	AccessLog       bool
}

// Handlers groups every endpoint implementation
type Handlers struct {
	Action   handlers.ActionHandlerInterface
	Campaign handlers.CampaignHandlerInterface
	Target   handlers.TargetHandlerInterface
	Settings *handlers.SettingsHandler
	Message  *handlers.MessageHandler
	Audit    *handlers.AuditHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	config   Config
	handlers Handlers
	auth     *middleware.AuthMiddleware
	checks   map[string]HealthCheck
	logger   zerolog.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg Config, h Handlers, auth *middleware.AuthMiddleware, checks map[string]HealthCheck, log zerolog.Logger) Router {
	if cfg.BodyLimit == 0 {
		cfg.BodyLimit = 4 * 1024 * 1024
	}
	if cfg.AppName == "" {
		cfg.AppName = "Campaign Dispatcher API"
	}

	r := &FiberRouter{
		config:   cfg,
		handlers: h,
		auth:     auth,
		checks:   checks,
		logger:   log.With().Str("component", "router").Logger(),
	}

	r.app = fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: "campaign-dispatcher",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.config.MetricsEnabled {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, middleware.MetricsHandler())
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.config.RateLimit > 0 {
		window := r.config.RateLimitWindow
		if window == 0 {
			window = time.Minute
		}
		api.Use(limiter.New(limiter.Config{
			Max:        r.config.RateLimit,
			Expiration: window,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
					Success: false,
					Message: "Too many requests. Please try again later.",
					Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
				})
			},
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}

	api.Use(r.auth.Authenticate())

	api.Post("/actions", r.handlers.Action.Trigger)
	api.Post("/queue/process", r.handlers.Action.ProcessQueue)

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.handlers.Campaign.CreateCampaign)
	campaigns.Get("/", r.handlers.Campaign.ListCampaigns)
	campaigns.Get("/:uuid", r.handlers.Campaign.GetCampaign)
	campaigns.Post("/:uuid/start", r.handlers.Campaign.StartCampaign)
	campaigns.Post("/:uuid/pause", r.handlers.Campaign.PauseCampaign)
	campaigns.Get("/:uuid/stats", r.handlers.Campaign.GetStats)
	campaigns.Post("/:uuid/sequences", r.handlers.Campaign.AddSequence)
	campaigns.Get("/:uuid/sequences", r.handlers.Campaign.ListSequences)
	campaigns.Post("/:uuid/targets", r.handlers.Target.ImportTargets)
	campaigns.Get("/:uuid/messages", r.handlers.Message.ListMessages)
	campaigns.Get("/:uuid/messages/export", r.handlers.Message.ExportMessages)

	api.Patch("/targets/:uuid/status", r.handlers.Target.UpdateTargetStatus)

	api.Get("/settings", r.handlers.Settings.GetSettings)
	api.Put("/settings", r.handlers.Settings.UpdateSettings)

	api.Get("/audit", r.handlers.Audit.ListAuditLogs)

	r.app.Use(r.notFoundHandler)

	r.logger.Info().Msg("routes configured")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error().
				Interface("panic", e).
				Interface("request_id", c.Locals("requestid")).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("panic recovered")
		},
	}))

	if r.config.MetricsEnabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	if len(r.config.AllowedOrigins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: r.config.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "HEAD", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"Authorization",
				"X-Request-ID",
				middleware.UserIDHeader,
			},
			ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
			MaxAge:        utils.CORSMaxAge,
		}))
	}

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if r.config.AccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
		}))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info().Str("address", address).Msg("starting HTTP server")
	return r.app.Listen(address)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck pings every registered dependency
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := r.checks[name](ctx); err != nil {
			report[name] = err.Error()
			healthy = false
			continue
		}
		report[name] = "ok"
	}

	status := fiber.StatusOK
	message := "Service is healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		message = "Service is degraded"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    strings.ToLower(strings.TrimPrefix(message, "Service is ")),
			"timestamp": utils.UTCNow().Format(time.RFC3339),
			"checks":    report,
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	r.logger.Error().Err(err).Int("status", code).Str("path", c.Path()).Msg("unhandled error")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
