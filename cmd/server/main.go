package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/amnesty"
	"github.com/aumos/shadow-ai-sentinel/internal/config"
	"github.com/aumos/shadow-ai-sentinel/internal/database"
	"github.com/aumos/shadow-ai-sentinel/internal/detection"
	"github.com/aumos/shadow-ai-sentinel/internal/events"
	"github.com/aumos/shadow-ai-sentinel/internal/handlers"
	"github.com/aumos/shadow-ai-sentinel/internal/metrics"
	"github.com/aumos/shadow-ai-sentinel/internal/reporting"
)

const serviceName = "shadow-ai-sentinel"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting shadow AI sentinel",
		zap.String("service", serviceName),
		zap.String("environment", cfg.Environment))

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database connection", zap.Error(err))
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	publisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", zap.Error(err))
		}
	}()

	detectionRepo := database.NewDetectionRepository(db, logger)
	proposalRepo := database.NewProposalRepository(db, logger)
	amnestyRepo := database.NewAmnestyRepository(db, logger)

	engine := detection.NewEngine(logger)
	amnestySvc := amnesty.NewService(amnestyRepo, detectionRepo, logger)
	reportingSvc := reporting.NewService(detectionRepo, redisClient, cfg.Reporting.CacheTTL, logger)
	collector := metrics.NewCollector()

	handler := handlers.NewShadowAIHandler(
		engine,
		detectionRepo,
		proposalRepo,
		amnestySvc,
		reportingSvc,
		publisher,
		collector,
		cfg.Detection.MaxBatchSize,
		logger,
	)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(collector.HTTPMiddleware())
	handler.RegisterRoutes(router)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func setupLogging(cfg config.Config) (*zap.Logger, error) {
	if cfg.Debug || cfg.Logging.Format == "console" {
		return zap.NewDevelopment()
	}
	zapCfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.Logging.Level); err == nil {
		zapCfg.Level = level
	}
	return zapCfg.Build()
}
