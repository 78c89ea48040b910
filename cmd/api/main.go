package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"association-treasury/config"
	httpHandler "association-treasury/internal/adapter/http/handler"
	"association-treasury/internal/adapter/mq"
	pgStorage "association-treasury/internal/adapter/storage/postgres"
	redisStorage "association-treasury/internal/adapter/storage/redis"
	"association-treasury/internal/core/ports"
	"association-treasury/internal/core/quorum"
	"association-treasury/internal/service"
	"association-treasury/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("quorum_policy", cfg.Quorum.Policy).
		Msg("Starting Association Treasury Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Kafka producer
	producer, err := mq.NewSyncProducer(cfg.Kafka, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Kafka")
	}
	defer producer.Close()
	log.Info().Msg("Kafka connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	depositRepo := pgStorage.NewDepositRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	outboxRepo := pgStorage.NewOutboxRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	summaryCache := redisStorage.NewSummaryCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	quorumPolicy, err := quorum.ForName(cfg.Quorum.Policy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid quorum policy")
	}

	// Initialize business services
	accountSvc := service.NewAccountService(
		accountRepo,
		depositRepo,
		withdrawalRepo,
		outboxRepo,
		hashSvc,
		summaryCache,
		transactor,
		cfg.Kafka.Topic,
		log,
	)
	depositSvc := service.NewDepositService(
		accountRepo,
		depositRepo,
		outboxRepo,
		hashSvc,
		summaryCache,
		transactor,
		cfg.Kafka.Topic,
		log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		accountRepo,
		withdrawalRepo,
		outboxRepo,
		summaryCache,
		transactor,
		quorumPolicy,
		cfg.Kafka.Topic,
		log,
	)

	// Start the outbox relay
	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()
	relay := mq.NewOutboxRelay(
		outboxRepo,
		mq.NewPublisher(producer),
		cfg.Kafka.RelayInterval,
		cfg.Kafka.RelayBatch,
		cfg.Kafka.MaxAttempts,
		log,
	)
	go relay.Run(relayCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		DepositSvc:     depositSvc,
		WithdrawalSvc:  withdrawalSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the relay after the HTTP server so in-flight writes still
	// get their events drained.
	relayCancel()

	log.Info().Msg("Server exited")
}
