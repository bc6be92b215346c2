package integration

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pgrepo "github.com/retailsync/ledger/internal/adapter/repository/postgres"
	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/tests/testutil"
)

func TestPeriodLockBlocksPosting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
	testDB.MapAllRoles(ctx, "co-1")
	p := newPipeline(t, testDB)

	now := time.Now().UTC()
	err := pgrepo.NewPeriodRepository(testDB.Pool).Upsert(ctx, &domain.PeriodLock{
		ID:        pgrepo.NewULIDGenerator().Generate(),
		CompanyID: "co-1",
		StartDate: now.AddDate(0, 0, -7),
		EndDate:   now.AddDate(0, 0, 7),
		Locked:    true,
		Note:      "year-end close",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("failed to lock period: %v", err)
	}

	_, err = p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-locked", Type: domain.EventSaleCompleted, Payload: testutil.CashSalePayload(89500)},
	})
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	out, err := p.Process.Process(ctx, "evt-locked")
	if err != nil {
		t.Fatalf("failed to process event: %v", err)
	}
	if out.Status != domain.EventFailed {
		t.Fatalf("expected failed on locked period, got %s", out.Status)
	}
	if out.RetryIn != 0 {
		t.Errorf("expected no retry schedule, got %s", out.RetryIn)
	}
	if !errors.Is(out.Err, domain.ErrPeriodLocked) && !strings.Contains(out.Err.Error(), "locked") {
		t.Errorf("expected a period lock error, got %v", out.Err)
	}

	var journals int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals WHERE company_id = 'co-1'`).Scan(&journals); err != nil {
		t.Fatalf("failed to count journals: %v", err)
	}
	if journals != 0 {
		t.Errorf("expected no journals in a locked period, got %d", journals)
	}
}

func TestServerResolvesMissingRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	// The device lost its rate feed: the payload carries none and names
	// an explicit date the server resolves against.
	rateless := json.RawMessage(`{
		"pricing_currency": "USD",
		"settlement_currency": "USD",
		"warehouse_id": "wh-main",
		"invoice_date": "2026-03-10",
		"lines": [{
			"item_id": "item-1",
			"qty": "1",
			"unit_price_usd": "100",
			"line_total_usd": "100"
		}],
		"payments": [{"method": "cash", "amount_usd": "100"}]
	}`)

	t.Run("uses stored market rate", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
		testDB.MapAllRoles(ctx, "co-1")
		testDB.SetMarketRate(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 89000)
		p := newPipeline(t, testDB)

		_, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
			{EventID: "evt-norate-1", Type: domain.EventSaleCompleted, Payload: rateless},
		})
		if err != nil {
			t.Fatalf("failed to submit batch: %v", err)
		}
		out, err := p.Process.Process(ctx, "evt-norate-1")
		if err != nil {
			t.Fatalf("failed to process event: %v", err)
		}
		if out.Status != domain.EventProcessed {
			t.Fatalf("expected processed, got %s (err=%v)", out.Status, out.Err)
		}

		var rate decimal.Decimal
		if err := testDB.Pool.QueryRow(ctx, `SELECT exchange_rate FROM documents WHERE event_id = 'evt-norate-1'`).Scan(&rate); err != nil {
			t.Fatalf("failed to load document rate: %v", err)
		}
		if !rate.Equal(decimal.NewFromInt(89000)) {
			t.Errorf("expected the stored market rate, got %s", rate)
		}
	})

	t.Run("falls back when no rate exists", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
		testDB.MapAllRoles(ctx, "co-1")
		p := newPipeline(t, testDB)

		_, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
			{EventID: "evt-norate-2", Type: domain.EventSaleCompleted, Payload: rateless},
		})
		if err != nil {
			t.Fatalf("failed to submit batch: %v", err)
		}
		out, err := p.Process.Process(ctx, "evt-norate-2")
		if err != nil {
			t.Fatalf("failed to process event: %v", err)
		}
		if out.Status != domain.EventProcessed {
			t.Fatalf("expected processed, got %s (err=%v)", out.Status, out.Err)
		}

		var rate decimal.Decimal
		if err := testDB.Pool.QueryRow(ctx, `SELECT exchange_rate FROM documents WHERE event_id = 'evt-norate-2'`).Scan(&rate); err != nil {
			t.Fatalf("failed to load document rate: %v", err)
		}
		if !rate.Equal(domain.FallbackUSDToLBP) {
			t.Errorf("expected the fallback rate, got %s", rate)
		}
	})
}

func TestReplayedEventPostsExactlyOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
	testDB.MapAllRoles(ctx, "co-1")
	p := newPipeline(t, testDB)

	_, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-replay", Type: domain.EventSaleCompleted, Payload: testutil.CashSalePayload(89500)},
	})
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	out, err := p.Process.Process(ctx, "evt-replay")
	if err != nil {
		t.Fatalf("failed to process event: %v", err)
	}
	if out.Status != domain.EventProcessed {
		t.Fatalf("expected processed, got %s (err=%v)", out.Status, out.Err)
	}

	// Simulate a redis wipe between the first run and the replay: the
	// database row must still stop a double posting.
	if err := p.Redis.FlushAll(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}

	out, err = p.Process.Process(ctx, "evt-replay")
	if err != nil {
		t.Fatalf("failed to replay event: %v", err)
	}
	if out.Status != domain.EventProcessed {
		t.Errorf("expected processed on replay, got %s", out.Status)
	}

	var journals int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals WHERE company_id = 'co-1'`).Scan(&journals); err != nil {
		t.Fatalf("failed to count journals: %v", err)
	}
	if journals != 1 {
		t.Errorf("expected exactly one journal after replay, got %d", journals)
	}
}
