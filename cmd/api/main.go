package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/api"
	"github.com/riskassess/backend/internal/api/handlers"
	"github.com/riskassess/backend/internal/assessment"
	"github.com/riskassess/backend/internal/cache/redis"
	"github.com/riskassess/backend/internal/llm"
	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/internal/middleware/ratelimit"
	"github.com/riskassess/backend/internal/middleware/security"
	"github.com/riskassess/backend/internal/middleware/validation"
	"github.com/riskassess/backend/internal/session"
	"github.com/riskassess/backend/internal/storage/sqlite"
	"github.com/riskassess/backend/pkg/config"
	appLogger "github.com/riskassess/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting diabetes risk assessment API server")

	metrics.Init()

	deps := session.Deps{
		HistoryCapacity: cfg.Session.HistoryCapacity,
	}
	pingers := map[string]handlers.Pinger{}
	var archiveReader handlers.ArchiveReader
	var counterReader handlers.CounterReader

	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	})
	if cfg.LLM.APIKey == "" {
		appLogger.Warn("No inference API key configured; submissions will fail until RISK_ASSESS_LLM_APIKEY is set")
	}

	var engineOpts []assessment.Option

	if cfg.SQLite.Enabled {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}

		deps.Archive = sqliteClient
		archiveReader = sqliteClient
		pingers["sqlite"] = sqliteClient
		engineOpts = append(engineOpts, assessment.WithDiagnostics(sqliteClient))
	}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisClient, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		deps.Lock = redisClient
		deps.Counter = redisClient
		counterReader = redisClient
		pingers["redis"] = redisClient
	}

	deps.Assessor = assessment.NewEngine(llmClient, llmClient.DefaultOptions(), engineOpts...)

	registry, err := session.NewRegistry(cfg.Session.MaxSessions, deps)
	if err != nil {
		appLogger.Fatal("Failed to create session registry", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, " + ratelimit.SessionHeader,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
		Logger:      appLogger.GetLogger(),
	}))

	api.RegisterRoutes(app, api.Handlers{
		Health:    handlers.NewHealthHandler(pingers),
		Session:   handlers.NewSessionHandler(registry),
		Import:    handlers.NewImportHandler(registry),
		Archive:   handlers.NewArchiveHandler(archiveReader, counterReader),
		WebSocket: handlers.NewWebSocketHandler(registry),
		RateLimit: rateLimiter.Middleware(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting",
		zap.String("address", addr),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("archive", cfg.SQLite.Enabled),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
