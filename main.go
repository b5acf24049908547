// Package main provides the main entry point for the campaign dispatcher
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/campaign-dispatcher/app/handlers"
	"github.com/amirphl/campaign-dispatcher/app/logger"
	"github.com/amirphl/campaign-dispatcher/app/middleware"
	"github.com/amirphl/campaign-dispatcher/app/router"
	"github.com/amirphl/campaign-dispatcher/app/scheduler"
	"github.com/amirphl/campaign-dispatcher/app/services"
	businessflow "github.com/amirphl/campaign-dispatcher/business_flow"
	"github.com/amirphl/campaign-dispatcher/config"
	"github.com/amirphl/campaign-dispatcher/repository"
	"github.com/amirphl/campaign-dispatcher/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *logger.Logger
	stopFuncs []func()
}

func main() {
	log.Println("Starting campaign dispatcher...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.logger.Close()

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.router.Start(cfg.Server.Address()); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	app.logger.Info().Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.Shutdown(shutdownCtx); err != nil {
		app.logger.Error().Err(err).Msg("error during shutdown")
	}

	// Background workers stop in reverse start order; clients close last
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	app.logger.Info().Msg("server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, zl zerolog.Logger) (*gorm.DB, error) {
	dbLogger := zl.With().Str("component", "gorm").Logger()
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(&dbLogger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	zl.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity; nil when disabled
func initializeCache(cfg config.CacheConfig, zl zerolog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	zl.Info().Int("db", cfg.RedisDB).Msg("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned function stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, zl zerolog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					zl.Warn().Err(err).Msg("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializePublisher connects to the outcome exchange, or returns a no-op publisher when unset
func initializePublisher(cfg config.BrokerConfig, zl zerolog.Logger) (services.OutcomePublisher, error) {
	if cfg.URL == "" {
		return services.NoopOutcomePublisher{}, nil
	}
	p, err := services.NewAMQPOutcomePublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}
	zl.Info().Str("exchange", cfg.Exchange).Msg("outcome publisher connected")
	return p, nil
}

// initializeApplication wires stores, flows, handlers and workers
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	appLogger := logger.New(cfg.Logging, cfg.Deployment)
	zl := appLogger.Logger

	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, zl)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, zl)
	if err != nil {
		return nil, err
	}

	checks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, zl))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	publisher, err := initializePublisher(cfg.Broker, zl)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() { _ = publisher.Close() })

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	queueRepo := repository.NewQueuedMessageRepository(db)
	settingsRepo := repository.NewDeliverySettingsRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	var budget services.SendBudget = services.NewStoreSendBudget(queueRepo)
	if rc != nil {
		budget = services.NewRedisSendBudget(rc, cfg.Cache.RedisPrefix)
	}
	dispatchers := services.NewDispatcherSelector(
		services.NewNullDispatcher(),
		services.NewHTTPDispatcher(cfg.Queue.WebhookTimeout),
	)

	var tokenService services.TokenService
	if cfg.Auth.Enabled {
		tokenService, err = services.NewTokenService(cfg.Auth.TokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
		zl.Info().Str("issuer", cfg.Auth.Issuer).Msg("bearer token authentication enabled")
	}

	clock := utils.SystemClock{}
	runTx := businessflow.GormTxRunner(db)

	// Initialize flows
	expander := businessflow.NewQueueExpander(campaignRepo, targetRepo, sequenceRepo, queueRepo, settingsRepo, runTx, clock, zl)
	processor := businessflow.NewQueueProcessor(queueRepo, targetRepo, settingsRepo, dispatchers, budget, publisher, clock, zl)
	controller := businessflow.NewCampaignController(expander, campaignRepo, queueRepo, runTx, zl)
	stats := businessflow.NewStatsAggregator(campaignRepo, queueRepo)
	actionFlow := businessflow.NewActionFlow(controller, processor, stats, auditRepo)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, sequenceRepo)
	targetFlow := businessflow.NewTargetFlow(campaignRepo, targetRepo, auditRepo)
	settingsFlow := businessflow.NewSettingsFlow(settingsRepo, auditRepo)
	messageFlow := businessflow.NewMessageFlow(campaignRepo, queueRepo)
	auditFlow := businessflow.NewAuditFlow(auditRepo)

	// Initialize handlers
	appRouter := router.NewFiberRouter(
		router.Config{
			AllowedOrigins:  cfg.Security.AllowedOrigins,
			BodyLimit:       cfg.Server.BodyLimit,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			RateLimit:       cfg.Security.GlobalRateLimit,
			RateLimitWindow: cfg.Security.RateLimitWindow,
			MetricsEnabled:  cfg.Metrics.Enabled,
			MetricsPath:     cfg.Metrics.Path,
			AccessLog:       cfg.Logging.EnableAccessLog,
		},
		router.Handlers{
			Action:   handlers.NewActionHandler(actionFlow, zl),
			Campaign: handlers.NewCampaignHandler(campaignFlow, actionFlow, zl),
			Target:   handlers.NewTargetHandler(targetFlow, zl),
			Settings: handlers.NewSettingsHandler(settingsFlow, zl),
			Message:  handlers.NewMessageHandler(messageFlow, zl),
			Audit:    handlers.NewAuditHandler(auditFlow, zl),
		},
		middleware.NewAuthMiddleware(tokenService),
		checks,
		zl,
	)

	if cfg.Queue.RunnerEnabled {
		runner := scheduler.NewQueueRunner(queueRepo, processor, clock, scheduler.RunnerConfig{
			Interval:      cfg.Queue.RunnerInterval,
			OwnerBatch:    cfg.Queue.OwnerBatch,
			RatePerSecond: cfg.Queue.RatePerSecond,
			Burst:         cfg.Queue.RateBurst,
			StaleAfter:    services.ClampWebhookTimeout(cfg.Queue.WebhookTimeout) + utils.StaleClaimMargin,
		}, zl)
		stopFuncs = append(stopFuncs, runner.Start(context.Background()))
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		logger:    appLogger,
		stopFuncs: stopFuncs,
	}, nil
}
