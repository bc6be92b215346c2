package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/retailsync/ledger/internal/adapter/http"
	"github.com/retailsync/ledger/internal/adapter/http/handler"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
	postgresRepo "github.com/retailsync/ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/retailsync/ledger/internal/adapter/repository/redis"
	"github.com/retailsync/ledger/internal/infrastructure/auth"
	"github.com/retailsync/ledger/internal/infrastructure/config"
	"github.com/retailsync/ledger/internal/infrastructure/logger"
	"github.com/retailsync/ledger/internal/infrastructure/metrics"
	"github.com/retailsync/ledger/internal/infrastructure/postgres"
	"github.com/retailsync/ledger/internal/infrastructure/redis"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx := context.Background()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	redisOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL for the task queue")
	}
	enqueuer := worker.NewEnqueuer(asynq.NewClient(redisOpts))
	defer enqueuer.Close()

	metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	eventRepo := postgresRepo.NewEventRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	rateRepo := postgresRepo.NewRateRepository(pool)
	periodRepo := postgresRepo.NewPeriodRepository(pool)
	deviceRepo := postgresRepo.NewDeviceRepository(pool)
	updateRepo := postgresRepo.NewUpdateRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	locker := postgresRepo.NewCompanyLocker()
	idGen := postgresRepo.NewULIDGenerator()

	resultCache := redisRepo.NewCache(redisClient)
	tokens := auth.NewTokenSource()

	// Use cases
	ingestUC := usecase.NewIngestUseCase(txManager, eventRepo, resultCache, enqueuer, auditRepo, appLogger)
	pullUC := usecase.NewPullUseCase(updateRepo)
	deviceUC := usecase.NewDeviceUseCase(deviceRepo, tokens, idGen, auditRepo, appLogger)
	outboxUC := usecase.NewOutboxUseCase(eventRepo, enqueuer, resultCache, auditRepo, appLogger)
	ledgerUC := usecase.NewLedgerUseCase(txManager, journalRepo, periodRepo, locker, idGen, auditRepo, appLogger)
	periodUC := usecase.NewPeriodUseCase(periodRepo, idGen)
	rateUC := usecase.NewRateUseCase(rateRepo, idGen)

	// Handlers
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		SyncHandler:   handler.NewSyncHandler(ingestUC, pullUC, deviceUC, rateUC),
		OutboxHandler: handler.NewOutboxHandler(outboxUC),
		DeviceHandler: handler.NewDeviceHandler(deviceUC),
		LedgerHandler: handler.NewLedgerHandler(ledgerUC, periodUC, rateUC, pullUC),
		HealthHandler: handler.NewHealthHandler(pool, redisClient),
		DeviceAuth:    deviceUC,
		AdminAPIKey:   cfg.AdminAPIKey,
		RateLimiter:   middleware.NewRateLimiter(cfg.SyncRateLimit, cfg.SyncRateBurst),
		Logging:       middleware.NewLoggingMiddleware(appLogger),
	})

	server := &http.Server{
		Addr:         listenAddr(cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func listenAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}
