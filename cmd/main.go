package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/suteetoe/shopdash/internal/analytics"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/eventbus"
	"github.com/suteetoe/shopdash/internal/handler"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/realtime"
	"github.com/suteetoe/shopdash/internal/repository"
	"github.com/suteetoe/shopdash/internal/shopify"
	"github.com/suteetoe/shopdash/internal/tenant"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/database"
	"github.com/suteetoe/shopdash/pkg/jwtutil"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/pkg/metrics"
	"github.com/suteetoe/shopdash/pkg/redisclient"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

const serviceName = "shopdash"

func main() {
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting "+serviceName, appConfig.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	if appConfig.DB.AutoMigrate {
		if err := database.MigrateUp(appConfig.DB.GetDSN()); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
		log.Info("Database migrations applied")
	}
	db, err := database.InitDB(&appConfig.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	store := repository.New(db)

	// Redis backs shared state across instances; without it everything stays in process
	var (
		redisClient *redisclient.Client
		tenantCache tenant.Cache
		backplane   realtime.Backplane
		deduper     handler.Deduper       = ingest.NewMemoryDeduper(appConfig.Webhook.DedupeTTL)
		deadLetters ingest.DeadLetterSink = ingest.NewMemoryDeadLetters(0)
	)
	if appConfig.Redis.Enabled() {
		redisClient, err = redisclient.NewClient(appConfig.Redis, log)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		tenantCache = redisClient
		backplane = realtime.NewRedisBackplane(redisClient.Redis(), "")
		deduper = ingest.NewRedisDeduper(redisClient, appConfig.Webhook.DedupeTTL)
		deadLetters = ingest.NewRedisDeadLetters(redisClient.Redis(), "")
	} else {
		log.Warn("REDIS_ADDR not set, using in-process dedupe, dead letters and fan-out")
	}

	directory := tenant.NewDirectory(store, tenantCache, appConfig.Tenant.CacheTTL)

	hub := realtime.NewHub(realtime.Options{
		AllowedOrigins: appConfig.Server.AllowedOrigins,
		Backplane:      backplane,
	}, log)
	if err := hub.Start(ctx); err != nil {
		log.Fatal("Failed to start realtime hub", zap.Error(err))
	}

	publisher := eventbus.New(appConfig.Kafka)
	processor := ingest.NewProcessor(store, directory, hub, publisher)
	queue := ingest.NewQueue(appConfig.Queue, processor, deadLetters, log)
	queue.Start()

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})
	syncer := shopify.NewSyncer(store, shopify.NewClientFactory(appConfig.Shopify))
	reports := analytics.NewService(db)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewRequestValidator()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler()

	// Middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(metrics.NewHTTPMetrics(serviceName).Middleware())
	e.Use(logger.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: appConfig.Server.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	handler.RegisterRoutes(e, handler.Handlers{
		Health:      handler.NewHealthHandler(handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) })),
		Auth:        handler.NewAuthHandler(store, directory, jwtUtil),
		Webhook:     handler.NewWebhookHandler(appConfig.Webhook, directory, queue, deduper, deadLetters),
		WS:          handler.NewWSHandler(hub, jwtUtil),
		Analytics:   handler.NewAnalyticsHandler(reports),
		Insights:    handler.NewInsightsHandler(reports),
		Customers:   handler.NewCustomerHandler(store),
		Products:    handler.NewProductHandler(store),
		Orders:      handler.NewOrderHandler(store),
		Branches:    handler.NewBranchHandler(store, directory),
		Events:      handler.NewEventHandler(store),
		Tenants:     handler.NewTenantHandler(directory, syncer),
		DeadLetters: handler.NewDeadLetterHandler(deadLetters, queue),
	}, jwtUtil)

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()

	// stop accepting webhooks before draining the queue they feed
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn("Ingestion queue did not drain", zap.Error(err))
	}
	hub.Close()
	if err := publisher.Close(); err != nil {
		log.Error("Failed to close event publisher", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
	log.Info("Server exited")
}
