// Package main is the entry point for the wabroker HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/coreflowhq/wabroker/internal/broker"
	"github.com/coreflowhq/wabroker/internal/config"
	"github.com/coreflowhq/wabroker/internal/handler"
	"github.com/coreflowhq/wabroker/internal/middleware"
	"github.com/coreflowhq/wabroker/internal/pollstore"
	"github.com/coreflowhq/wabroker/internal/queue"
	"github.com/coreflowhq/wabroker/internal/repository"
	"github.com/coreflowhq/wabroker/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// A missing broker configuration is survivable: the process starts with a
	// disabled gateway so health and admin endpoints stay up, and the poller
	// backs off on a fixed long interval.
	var gateway service.Gateway
	client, err := broker.New(cfg.Broker, logger)
	switch {
	case err == nil:
		gateway = client
	case errors.Is(err, broker.ErrNotConfigured):
		logger.Warn("Broker integration is not configured, starting with a disabled gateway")
		gateway = broker.Disabled{}
	default:
		logger.Fatal("Failed to construct broker gateway", zap.Error(err))
	}

	var q queue.Queue
	switch cfg.Queue.Driver {
	case "amqp":
		q, err = queue.NewAMQPQueue(cfg.Queue.URL, cfg.Queue.Exchange, cfg.Queue.RoutingKey, logger)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP broker", zap.Error(err))
		}
	default:
		q = queue.NewMemoryQueue(cfg.Queue.BufferSize, logger)
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error("Failed to close event queue", zap.Error(err))
		}
	}()

	cipher, err := pollstore.NewSecretCipher(cfg.Polls.SecretPassphrase)
	if err != nil {
		logger.Fatal("Failed to initialize poll secret cipher", zap.Error(err))
	}

	polls := pollstore.NewStore(
		pollstore.NewRedisSnapshotStore(redisClient, cfg.Polls.SnapshotKey),
		cipher,
		pollstore.Config{
			TTL:           time.Duration(cfg.Polls.TTLMinutes) * time.Minute,
			FlushDebounce: time.Duration(cfg.Polls.FlushDebounceMs) * time.Millisecond,
		},
		logger,
	)

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, redisClient, gateway, q, polls, logger)

	h := handler.NewHandler(svc, logger)
	router := setupRouter(h)

	middlewareConfig := &middleware.Config{
		Logger: logger,
		CORS: &middleware.CORSConfig{
			AllowedOrigins:   cfg.Middleware.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           86400,
		},
		RateLimit:      rate.Limit(cfg.Middleware.RateLimit),
		RateLimitBurst: cfg.Middleware.RateLimitBurst,
		RequestTimeout: 30 * time.Second,
	}
	if !cfg.Middleware.EnableCORS {
		middlewareConfig.CORS = nil
	}

	finalHandler := middleware.Chain(middlewareConfig)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      finalHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := svc.Poller.Start(); err != nil {
		logger.Error("Failed to start poller on startup", zap.Error(err))
	} else {
		logger.Info("Poller started automatically on application startup")
	}

	go func() {
		logger.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if svc.Poller.IsRunning() {
		if err := svc.Poller.Stop(); err != nil {
			logger.Error("Failed to stop poller", zap.Error(err))
		}
	}

	// Push any pending poll metadata to Redis before the process exits.
	polls.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
