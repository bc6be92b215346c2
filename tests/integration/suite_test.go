package integration

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	pgrepo "github.com/retailsync/ledger/internal/adapter/repository/postgres"
	redisrepo "github.com/retailsync/ledger/internal/adapter/repository/redis"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/tests/testutil"
)

// pipeline bundles the ingest-to-posting stack wired against real
// Postgres and an in-process redis.
type pipeline struct {
	Ingest  *usecase.IngestUseCase
	Process *usecase.ProcessUseCase
	Outbox  *usecase.OutboxUseCase
	Ledger  *usecase.LedgerUseCase
	Enq     *testutil.RecordingEnqueuer
	Redis   *goredis.Client
}

func newPipeline(t *testing.T, db *testutil.TestDB) *pipeline {
	t.Helper()

	pool := db.Pool
	logger := zerolog.Nop()

	txManager := pgrepo.NewTxManager(pool)
	eventRepo := pgrepo.NewEventRepository(pool)
	documentRepo := pgrepo.NewDocumentRepository(pool)
	journalRepo := pgrepo.NewJournalRepository(pool)
	rateRepo := pgrepo.NewRateRepository(pool)
	periodRepo := pgrepo.NewPeriodRepository(pool)
	mappingRepo := pgrepo.NewMappingRepository(pool)
	auditRepo := pgrepo.NewAuditRepository(pool)
	locker := pgrepo.NewCompanyLocker()
	idGen := pgrepo.NewULIDGenerator()

	rclient := testutil.NewRedisClient(t)
	cache := redisrepo.NewCache(rclient)
	idem := redisrepo.NewIdempotencyStore(rclient)
	enq := &testutil.RecordingEnqueuer{}

	rates := usecase.NewRateUseCase(rateRepo, idGen)
	converter := usecase.NewConvertUseCase(rates, idGen)
	poster := usecase.NewPostingUseCase(documentRepo, journalRepo, periodRepo, mappingRepo, locker, idGen)

	return &pipeline{
		Ingest:  usecase.NewIngestUseCase(txManager, eventRepo, cache, enq, auditRepo, logger),
		Process: usecase.NewProcessUseCase(txManager, eventRepo, converter, poster, idem, cache, enq, auditRepo, 8, logger),
		Outbox:  usecase.NewOutboxUseCase(eventRepo, enq, cache, auditRepo, logger),
		Ledger:  usecase.NewLedgerUseCase(txManager, journalRepo, periodRepo, locker, idGen, auditRepo, logger),
		Enq:     enq,
		Redis:   rclient,
	}
}
