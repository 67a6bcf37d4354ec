/**
 * @description
 * This is the main entry point for the Perch backend. It initializes all
 * components: configuration, database connection pool, Redis, the RabbitMQ
 * producer, the bank-verification client, the repository, the core service,
 * the cron scheduler, and the HTTP server, then runs until interrupted.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: PostgreSQL connection pooling.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - github.com/joho/godotenv: Local .env loading for development.
 * - internal/api, internal/app, internal/config, internal/jobs,
 *   internal/secure, internal/store, pkg/bankclient, pkg/rabbitmq.
 */

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/perchfin/perch-backend/internal/api"
	"github.com/perchfin/perch-backend/internal/app"
	"github.com/perchfin/perch-backend/internal/config"
	"github.com/perchfin/perch-backend/internal/jobs"
	"github.com/perchfin/perch-backend/internal/secure"
	"github.com/perchfin/perch-backend/internal/store"
	"github.com/perchfin/perch-backend/pkg/bankclient"
	"github.com/perchfin/perch-backend/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present; environment variables win.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("starting perch-backend", "port", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database url parse failed", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connected")

	// Initialize the RabbitMQ producer. The broker is optional; without one
	// event publishing degrades to a logged no-op.
	var producer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq producer unavailable, using fallback", "error", err)
			producer = &rabbitmq.EventProducerFallback{Logger: logger}
		} else {
			producer = eventProducer
		}
	} else {
		producer = &rabbitmq.EventProducerFallback{Logger: logger}
	}
	defer producer.Close()

	// Initialize the data access layer and the core service.
	repository := store.NewPostgresRepository(dbpool)
	if err := repository.EnsureSchema(context.Background()); err != nil {
		logger.Warn("schema bootstrap failed (tables may already exist)", "error", err)
	}
	service := app.NewService(repository, producer, cfg, logger)

	// Field-level encryption for linked-account data.
	if strings.TrimSpace(cfg.EncryptionKey) != "" {
		key, err := hex.DecodeString(cfg.EncryptionKey)
		if err != nil {
			logger.Error("encryption key must be hex encoded", "error", err)
			os.Exit(1)
		}
		codec, err := secure.NewCodec(key)
		if err != nil {
			logger.Error("encryption codec init failed", "error", err)
			os.Exit(1)
		}
		service.WithCodec(codec)
	} else {
		logger.Warn("encryption key missing, linked-account fields stored in clear")
	}

	// Redis-backed rate limiting for advance requests. Optional; without
	// Redis the limit is simply not enforced.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed, rate limiting disabled", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed, rate limiting disabled", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				service.WithRateLimiter(app.NewAdvanceRateLimiter(redisClient, cfg.AdvanceRequestsPerHour, time.Hour))
				logger.Info("redis connected")
			}
		}
	}

	// External bank-verification provider. Optional; without one linked
	// accounts verify locally.
	if strings.TrimSpace(cfg.BankVerifierBaseURL) != "" {
		service.WithBankVerifier(bankclient.NewClient(cfg.BankVerifierBaseURL, cfg.BankVerifierAPIKey))
	}

	// Start the cron scheduler for advance lifecycle jobs.
	scheduler := jobs.NewScheduler(jobs.NewJobs(service, logger), logger, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	// Set up the HTTP server.
	handlers := api.NewHandlers(service, logger)
	router := api.Routes(handlers, cfg.JWTSecret)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
