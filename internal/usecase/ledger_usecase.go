package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

// LedgerUseCase serves journal inspection, manual reversal and the
// whole-ledger consistency check.
type LedgerUseCase struct {
	txManager   TransactionManager
	journalRepo JournalRepository
	periodRepo  PeriodRepository
	locker      CompanyLocker
	idGen       IDGenerator
	auditRepo   AuditRepository
	logger      zerolog.Logger
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	journalRepo JournalRepository,
	periodRepo PeriodRepository,
	locker CompanyLocker,
	idGen IDGenerator,
	auditRepo AuditRepository,
	logger zerolog.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		journalRepo: journalRepo,
		periodRepo:  periodRepo,
		locker:      locker,
		idGen:       idGen,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// GetJournal returns a journal with its lines.
func (uc *LedgerUseCase) GetJournal(ctx context.Context, id string) (*domain.Journal, error) {
	return uc.journalRepo.GetByID(ctx, id)
}

// CheckConsistency verifies that the company ledger nets to zero per
// currency and that no individual journal is imbalanced.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context, companyID string) (*domain.ConsistencyReport, error) {
	return uc.journalRepo.CheckConsistency(ctx, companyID)
}

// Reverse posts the mirror image of a journal and marks the original
// reversed. The reversal posts on today's date, so a locked current
// period blocks it.
func (uc *LedgerUseCase) Reverse(ctx context.Context, journalID, operator string) (*domain.Journal, error) {
	original, err := uc.journalRepo.GetByID(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if original.Status == domain.JournalReversed {
		return nil, domain.ErrDocumentNotPosted
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.locker.Lock(ctx, tx, original.CompanyID); err != nil {
		return nil, err
	}
	lock, err := uc.periodRepo.FindCovering(ctx, tx, original.CompanyID, today)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		return nil, domain.ErrPeriodLocked
	}

	reversal := &domain.Journal{
		ID:           uc.idGen.Generate(),
		CompanyID:    original.CompanyID,
		DocumentID:   original.DocumentID,
		Status:       domain.JournalPosted,
		PostingDate:  today,
		ExchangeRate: original.ExchangeRate,
		Memo:         fmt.Sprintf("reversal of %s", original.No),
		ReversesID:   &original.ID,
		CreatedAt:    now,
	}
	for i, l := range original.Lines {
		reversal.Lines = append(reversal.Lines, domain.JournalLine{
			ID:          uc.idGen.Generate(),
			JournalID:   reversal.ID,
			LineNo:      i + 1,
			AccountID:   l.AccountID,
			DebitUSD:    l.CreditUSD,
			CreditUSD:   l.DebitUSD,
			DebitLBP:    l.CreditLBP,
			CreditLBP:   l.DebitLBP,
			Memo:        l.Memo,
			CustomerID:  l.CustomerID,
			SupplierID:  l.SupplierID,
			WarehouseID: l.WarehouseID,
			ItemID:      l.ItemID,
		})
	}

	reversal.No, err = uc.journalRepo.NextJournalNo(ctx, tx, original.CompanyID, today.Year())
	if err != nil {
		return nil, err
	}
	if err := uc.journalRepo.CreateTx(ctx, tx, reversal); err != nil {
		return nil, err
	}
	if err := uc.journalRepo.MarkReversed(ctx, tx, original.ID, reversal.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.auditRepo.Create(ctx, &domain.AuditLog{
		ActorID:      operator,
		Action:       string(domain.AuditActionJournalReverse),
		ResourceType: "journal",
		ResourceID:   original.ID,
		AfterState:   domain.JSON{"reversal_id": reversal.ID},
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	})
	uc.logger.Info().Str("journal_id", original.ID).Str("reversal_id", reversal.ID).Msg("journal reversed")

	return reversal, nil
}

// PeriodUseCase manages period locks.
type PeriodUseCase struct {
	periodRepo PeriodRepository
	idGen      IDGenerator
}

// NewPeriodUseCase creates a new PeriodUseCase.
func NewPeriodUseCase(periodRepo PeriodRepository, idGen IDGenerator) *PeriodUseCase {
	return &PeriodUseCase{periodRepo: periodRepo, idGen: idGen}
}

// SetLockInput represents input for locking or unlocking a period.
type SetLockInput struct {
	CompanyID string
	StartDate time.Time
	EndDate   time.Time
	Locked    bool
	Note      string
}

// SetLock creates or updates a period lock.
func (uc *PeriodUseCase) SetLock(ctx context.Context, input SetLockInput) (*domain.PeriodLock, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("%w: end before start", domain.ErrPeriodLocked)
	}
	lock := &domain.PeriodLock{
		ID:        uc.idGen.Generate(),
		CompanyID: input.CompanyID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Locked:    input.Locked,
		Note:      input.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.periodRepo.Upsert(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// ListLocks returns the period locks of a company.
func (uc *PeriodUseCase) ListLocks(ctx context.Context, companyID string) ([]*domain.PeriodLock, error) {
	return uc.periodRepo.List(ctx, companyID)
}
