package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
)

// RateUseCase resolves USD to LBP exchange rates for posting and serves
// rate administration.
type RateUseCase struct {
	rateRepo RateRepository
	idGen    IDGenerator
}

// NewRateUseCase creates a new RateUseCase.
func NewRateUseCase(rateRepo RateRepository, idGen IDGenerator) *RateUseCase {
	return &RateUseCase{rateRepo: rateRepo, idGen: idGen}
}

// Resolve returns the rate for a business date: the exact row for the
// date if one exists, otherwise the latest earlier row of the same type,
// otherwise the system fallback. Resolution never fails on missing data.
func (uc *RateUseCase) Resolve(ctx context.Context, date time.Time, t domain.RateType) (domain.ResolvedRate, error) {
	if t == "" {
		t = domain.RateMarket
	}

	rate, err := uc.rateRepo.GetByDate(ctx, date, t)
	if err == nil {
		return domain.ResolvedRate{
			Rate:     rate.Rate,
			Type:     rate.Type,
			RateDate: rate.RateDate,
			Source:   domain.RateSourceExact,
		}, nil
	}
	if !errors.Is(err, domain.ErrMissingExchangeRate) {
		return domain.ResolvedRate{}, err
	}

	rate, err = uc.rateRepo.GetLatestBefore(ctx, date, t)
	if err == nil {
		return domain.ResolvedRate{
			Rate:     rate.Rate,
			Type:     rate.Type,
			RateDate: rate.RateDate,
			Source:   domain.RateSourceLatest,
		}, nil
	}
	if !errors.Is(err, domain.ErrMissingExchangeRate) {
		return domain.ResolvedRate{}, err
	}

	return domain.FallbackRate(t, date), nil
}

// SetRateInput represents input for storing a rate.
type SetRateInput struct {
	RateDate time.Time
	Type     domain.RateType
	Rate     decimal.Decimal
	Note     string
}

// SetRate upserts the rate row for a date and type. Documents already
// posted keep their frozen rate.
func (uc *RateUseCase) SetRate(ctx context.Context, input SetRateInput) (*domain.ExchangeRate, error) {
	if input.Rate.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrMissingExchangeRate
	}
	if input.Type == "" {
		input.Type = domain.RateMarket
	}

	rate := &domain.ExchangeRate{
		ID:        uc.idGen.Generate(),
		RateDate:  input.RateDate,
		Type:      input.Type,
		Rate:      input.Rate,
		Note:      input.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.rateRepo.Upsert(ctx, rate); err != nil {
		return nil, err
	}
	return rate, nil
}

// ListRates returns stored rates in a date range.
func (uc *RateUseCase) ListRates(ctx context.Context, from, to time.Time, limit int) ([]*domain.ExchangeRate, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return uc.rateRepo.List(ctx, from, to, limit)
}
