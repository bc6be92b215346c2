package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	postgresRepo "github.com/retailsync/ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/retailsync/ledger/internal/adapter/repository/redis"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	redisOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse redis URL for the task queue")
	}
	clientOpt, ok := redisOpts.(asynq.RedisClientOpt)
	if !ok {
		log.Fatal().Msg("unsupported redis connection scheme for the task queue")
	}

	enqueuer := worker.NewEnqueuer(asynq.NewClient(clientOpt))
	defer enqueuer.Close()

	m := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	eventRepo := postgresRepo.NewEventRepository(pool)
	documentRepo := postgresRepo.NewDocumentRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	rateRepo := postgresRepo.NewRateRepository(pool)
	periodRepo := postgresRepo.NewPeriodRepository(pool)
	mappingRepo := postgresRepo.NewMappingRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	locker := postgresRepo.NewCompanyLocker()
	idGen := postgresRepo.NewULIDGenerator()

	resultCache := redisRepo.NewCache(redisClient)
	idemStore := redisRepo.NewIdempotencyStore(redisClient)

	// Processing pipeline
	rateUC := usecase.NewRateUseCase(rateRepo, idGen)
	converter := usecase.NewConvertUseCase(rateUC, idGen)
	poster := usecase.NewPostingUseCase(documentRepo, journalRepo, periodRepo, mappingRepo, locker, idGen)
	processUC := usecase.NewProcessUseCase(
		txManager,
		eventRepo,
		converter,
		poster,
		idemStore,
		resultCache,
		enqueuer,
		auditRepo,
		cfg.MaxAttempts,
		appLogger,
	)

	handler := worker.NewHandler(processUC, enqueuer, m, cfg.SweepBatchSize, appLogger)
	w, err := worker.New(worker.Config{
		RedisOpts:     clientOpt,
		Handler:       handler,
		Concurrency:   cfg.WorkerConcurrency,
		SweepInterval: cfg.SweepInterval,
		Logger:        appLogger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build worker")
	}

	log.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Dur("sweep_interval", cfg.SweepInterval).
		Msg("starting worker")

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker failed")
	}

	log.Info().Msg("worker stopped")
}
