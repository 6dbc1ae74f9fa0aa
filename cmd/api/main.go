package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-engine/config"
	httpHandler "subscription-engine/internal/adapter/http/handler"
	pgStorage "subscription-engine/internal/adapter/storage/postgres"
	redisStorage "subscription-engine/internal/adapter/storage/redis"
	"subscription-engine/internal/core/ports"
	"subscription-engine/internal/service"
	"subscription-engine/pkg/logger"
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
		Msg("Starting Subscription Engine")

	// A wrong-length key would silently turn every webhook into garbage,
	// so refuse to boot instead.
	if err := cfg.Gateway.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway credentials")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

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

	// Initialize repositories
	orderRepo := pgStorage.NewOrderRepo(pool)
	subRepo := pgStorage.NewSubscriptionRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	eventRepo := pgStorage.NewWebhookEventRepo(pool)
	notifRepo := pgStorage.NewNotificationRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	processedCache := redisStorage.NewProcessedCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	cipherSvc, err := service.NewAESCipherService(cfg.Gateway.HashKey, cfg.Gateway.HashIV)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cipher service")
	}
	verifier := service.NewSHA256Verifier(cfg.Gateway.HashKey, cfg.Gateway.HashIV)
	decoder := service.NewFormDecoder()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Downstream notifier behind the outbox: deliveries survive restarts
	// and failures are retried by the dispatcher.
	httpClient := &http.Client{Timeout: cfg.Notifier.Timeout}
	directNotifier := service.NewHTTPNotifier(httpClient, cfg.Notifier.BotURL, cfg.Notifier.Secret, cfg.Notifier.Timeout, log)
	notifier := service.NewOutboxNotifier(directNotifier, notifRepo, log)
	dispatcher := service.NewDispatcher(directNotifier, notifRepo, log)
	go dispatcher.Run(ctx)

	// Initialize business services
	authSvc := service.NewOperatorAuthService(cfg.Admin.Username, cfg.Admin.PasswordHash, hashSvc, tokenSvc, log)
	orderSvc := service.NewOrderService(orderRepo, log)
	gatewayClient := service.NewGatewayClient(httpClient, cfg.Gateway.BaseURL, cfg.Gateway.MerchantID, log)
	subSvc := service.NewSubscriptionService(subRepo, orderRepo, txRepo, transactor, gatewayClient, notifier, log)
	sweeperSvc := service.NewSweeperService(subRepo, notifier, log)
	auditSvc := service.NewAuditService(auditRepo, log)
	processorSvc := service.NewWebhookProcessorService(
		decoder,
		cipherSvc,
		verifier,
		orderRepo,
		subRepo,
		txRepo,
		eventRepo,
		processedCache,
		notifier,
		cfg.Gateway.StrictSignature,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ProcessorSvc:   processorSvc,
		OrderSvc:       orderSvc,
		SubSvc:         subSvc,
		SweeperSvc:     sweeperSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		SweepToken:     cfg.Sweeper.Token,
		SweepGrace:     time.Duration(cfg.Sweeper.GraceDays) * 24 * time.Hour,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
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

	stop() // stops the outbox dispatcher

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
