package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/internal/usecase/mocks"
)

func TestRateResolve(t *testing.T) {
	repo := mocks.NewMockRateRepository()
	uc := usecase.NewRateUseCase(repo, mocks.NewMockIDGenerator())
	ctx := context.Background()

	apr1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mar28 := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	repo.Seed(&domain.ExchangeRate{ID: "r1", RateDate: apr1, Type: domain.RateMarket, Rate: decimal.NewFromInt(90500)})
	repo.Seed(&domain.ExchangeRate{ID: "r2", RateDate: mar28, Type: domain.RateMarket, Rate: decimal.NewFromInt(89000)})

	t.Run("exact date", func(t *testing.T) {
		got, err := uc.Resolve(ctx, apr1, domain.RateMarket)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.Source != domain.RateSourceExact || !got.Rate.Equal(decimal.NewFromInt(90500)) {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("latest before", func(t *testing.T) {
		got, err := uc.Resolve(ctx, time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC), domain.RateMarket)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.Source != domain.RateSourceLatest || !got.Rate.Equal(decimal.NewFromInt(89000)) {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("fallback when nothing stored", func(t *testing.T) {
		got, err := uc.Resolve(ctx, mar28, domain.RateOfficial)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.Source != domain.RateSourceFallback || !got.Rate.Equal(domain.FallbackUSDToLBP) {
			t.Fatalf("got %+v", got)
		}
	})
}

func TestSetRateRejectsNonPositive(t *testing.T) {
	uc := usecase.NewRateUseCase(mocks.NewMockRateRepository(), mocks.NewMockIDGenerator())

	_, err := uc.SetRate(context.Background(), usecase.SetRateInput{
		RateDate: time.Now(),
		Type:     domain.RateMarket,
		Rate:     decimal.Zero,
	})
	if err == nil {
		t.Fatal("expected rejection of zero rate")
	}
}
