package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	t.Run("sale payload", func(t *testing.T) {
		raw := json.RawMessage(`{
			"exchange_rate": "90000",
			"pricing_currency": "USD",
			"settlement_currency": "LBP",
			"warehouse_id": "wh-1",
			"lines": [{"item_id": "it-1", "qty": "2", "unit_price_usd": "10", "line_total_usd": "20"}]
		}`)
		p, err := DecodePayload(EventSaleCompleted, raw)
		if err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		sale, ok := p.(*SalePayload)
		if !ok {
			t.Fatalf("got %T, want *SalePayload", p)
		}
		if !sale.ExchangeRate.Equal(decimal.NewFromInt(90000)) {
			t.Fatalf("rate = %s", sale.ExchangeRate)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodePayload(EventType("inventory.adjusted"), json.RawMessage(`{}`))
		if !errors.Is(err, ErrUnknownEventType) {
			t.Fatalf("expected ErrUnknownEventType, got %v", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodePayload(EventSaleCompleted, json.RawMessage(`{"lines": `))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})
}

func TestSalePayloadValidate(t *testing.T) {
	t.Parallel()

	v := validator.New()

	base := func() *SalePayload {
		return &SalePayload{
			ExchangeRate:       decimal.NewFromInt(90000),
			PricingCurrency:    "USD",
			SettlementCurrency: "LBP",
			WarehouseID:        "wh-1",
			Lines: []SaleLine{{
				ItemID:       "it-1",
				Qty:          decimal.NewFromInt(2),
				UnitPriceUSD: decimal.NewFromInt(10),
				LineTotalUSD: decimal.NewFromInt(20),
			}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		if err := base().Validate(v); err != nil {
			t.Fatalf("expected valid, got %v", err)
		}
	})

	t.Run("no lines", func(t *testing.T) {
		p := base()
		p.Lines = nil
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("zero rate", func(t *testing.T) {
		p := base()
		p.ExchangeRate = decimal.Zero
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("negative qty", func(t *testing.T) {
		p := base()
		p.Lines[0].Qty = decimal.NewFromInt(-1)
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("line with no total", func(t *testing.T) {
		p := base()
		p.Lines[0].LineTotalUSD = decimal.Zero
		p.Lines[0].LineTotalLBP = decimal.Zero
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("bad payment method", func(t *testing.T) {
		p := base()
		p.Payments = []PaymentIn{{Method: "barter", AmountUSD: decimal.NewFromInt(20)}}
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("bad entity tag", func(t *testing.T) {
		p := base()
		p.Lines[0].Entity = Entity("gray")
		if err := p.Validate(v); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload, got %v", err)
		}
	})
}

func TestSalePayloadEntities(t *testing.T) {
	t.Parallel()

	p := &SalePayload{Lines: []SaleLine{
		{ItemID: "a"},
		{ItemID: "b", Entity: EntityUnofficial},
		{ItemID: "c", Entity: EntityOfficial},
	}}
	got := p.Entities()
	if len(got) != 2 || got[0] != EntityOfficial || got[1] != EntityUnofficial {
		t.Fatalf("Entities() = %v", got)
	}

	single := &SalePayload{Lines: []SaleLine{{ItemID: "a"}}}
	if got := single.Entities(); len(got) != 1 || got[0] != EntityOfficial {
		t.Fatalf("Entities() = %v, want [official]", got)
	}
}

func TestEffectiveDate(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	t.Run("explicit date wins", func(t *testing.T) {
		p := &SalePayload{InvoiceDate: "2026-03-10"}
		got := p.EffectiveDate(created)
		if got != time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) {
			t.Fatalf("EffectiveDate = %s", got)
		}
	})

	t.Run("timestamp prefix accepted", func(t *testing.T) {
		p := &SalePayload{InvoiceDate: "2026-03-10T09:00:00Z"}
		got := p.EffectiveDate(created)
		if got != time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) {
			t.Fatalf("EffectiveDate = %s", got)
		}
	})

	t.Run("falls back to creation day", func(t *testing.T) {
		p := &SalePayload{}
		got := p.EffectiveDate(created)
		if got != time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) {
			t.Fatalf("EffectiveDate = %s", got)
		}
	})
}
