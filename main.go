package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/submission-service/internal/cache"
	"github.com/SAP-F-2025/submission-service/internal/config"
	"github.com/SAP-F-2025/submission-service/internal/events"
	"github.com/SAP-F-2025/submission-service/internal/handlers"
	"github.com/SAP-F-2025/submission-service/internal/metrics"
	"github.com/SAP-F-2025/submission-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/submission-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/submission-service/internal/services"
	"github.com/SAP-F-2025/submission-service/internal/utils"
	"github.com/SAP-F-2025/submission-service/internal/validator"
	"github.com/SAP-F-2025/submission-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(utils.NewLogWriter(cfg.LogFile), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	metrics.Init()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional: without it the cache is bypassed and locks are process-local
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without it", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    redisClient,
		UserRepository: casdoor.NewUserCasdoor(cfg.Casdoor, redisClient),
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	publisher, err := newEventPublisher(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	serviceManager := services.NewServiceManager(repoManager.GetRepository(), repoManager, slogLogger, validator.New(), services.ServiceManagerConfig{
		Publisher:       publisher,
		StatementTopic:  cfg.Kafka.Topic,
		SubmissionTopic: cfg.Kafka.SubmissionTopic,
		Locker:          cache.NewLocker(redisClient),
		RegradeLockTTL:  cfg.RegradeLockTTL,
		XAPIBaseURL:     cfg.Telemetry.BaseURL,
		Telemetry: services.TelemetryEmitterConfig{
			QueueSize: cfg.Telemetry.QueueSize,
			Workers:   cfg.Telemetry.Workers,
		},
		PersistStatements: cfg.Telemetry.PersistStatements,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.SetupMiddleware(router, logger)

	authMiddleware := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, repoManager.GetRepository().User(), logger)
	handlers.NewHandlerManager(serviceManager, logger, authMiddleware, cfg.RateLimit).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "kafka", cfg.Kafka.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Drains telemetry, closes the publisher, then the database and Redis
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	logger.Info("Server exited")
}

// newEventPublisher streams to Kafka when brokers are configured. Otherwise events go to an
// in-process channel whose subscribers only log them.
func newEventPublisher(cfg *config.Config, logger *slog.Logger) (events.EventPublisher, error) {
	if cfg.Kafka.Enabled() {
		publisher, err := events.NewKafkaEventPublisher(cfg.Kafka.Brokers, logger)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	}

	publisher, pubSub := events.NewChannelEventPublisher(logger)
	for _, topic := range []string{cfg.Kafka.Topic, cfg.Kafka.SubmissionTopic} {
		if err := logEvents(pubSub, topic, logger); err != nil {
			return nil, err
		}
	}
	return publisher, nil
}

func logEvents(pubSub *gochannel.GoChannel, topic string, logger *slog.Logger) error {
	messages, err := pubSub.Subscribe(context.Background(), topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			event, err := events.DecodeEvent(msg)
			if err != nil {
				logger.Warn("Undecodable event", "topic", topic, "error", err)
			} else {
				logger.Debug("Event published", "topic", topic, "type", event.Type, "key", event.Key)
			}
			msg.Ack()
		}
	}()
	return nil
}
