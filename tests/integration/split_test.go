package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/tests/testutil"
)

func TestMixedEntitySaleSplitsAndPosts(t *testing.T) {
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

	mixed := json.RawMessage(`{
		"exchange_rate": "89500",
		"pricing_currency": "USD",
		"settlement_currency": "USD",
		"warehouse_id": "wh-main",
		"lines": [
			{"item_id": "item-a", "entity": "official", "qty": "1", "unit_price_usd": "60", "line_total_usd": "60"},
			{"item_id": "item-b", "entity": "unofficial", "qty": "1", "unit_price_usd": "40", "line_total_usd": "40"}
		],
		"payments": [{"method": "cash", "amount_usd": "100"}]
	}`)

	_, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-mixed", Type: domain.EventSaleCompleted, Payload: mixed},
	})
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	out, err := p.Process.Process(ctx, "evt-mixed")
	if err != nil {
		t.Fatalf("failed to process parent: %v", err)
	}
	if out.Status != domain.EventProcessed {
		t.Fatalf("expected processed parent, got %s (err=%v)", out.Status, out.Err)
	}

	officialID := domain.SubEventID("evt-mixed", domain.EntityOfficial)
	unofficialID := domain.SubEventID("evt-mixed", domain.EntityUnofficial)

	// The children were enqueued along with the parent itself.
	enqueued := map[string]bool{}
	for _, id := range p.Enq.EnqueuedIDs() {
		enqueued[id] = true
	}
	if !enqueued[officialID] || !enqueued[unofficialID] {
		t.Fatalf("expected both children enqueued, got %v", p.Enq.EnqueuedIDs())
	}

	for _, id := range []string{officialID, unofficialID} {
		out, err := p.Process.Process(ctx, id)
		if err != nil {
			t.Fatalf("failed to process child %s: %v", id, err)
		}
		if out.Status != domain.EventProcessed {
			t.Fatalf("child %s: expected processed, got %s (err=%v)", id, out.Status, out.Err)
		}
	}

	// The parent carries no document of its own; each child posts one.
	var parentDocs, journals int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE event_id = 'evt-mixed'`).Scan(&parentDocs); err != nil {
		t.Fatalf("failed to count parent documents: %v", err)
	}
	if parentDocs != 0 {
		t.Errorf("expected no parent documents, got %d", parentDocs)
	}
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals WHERE company_id = 'co-1'`).Scan(&journals); err != nil {
		t.Fatalf("failed to count journals: %v", err)
	}
	if journals != 2 {
		t.Errorf("expected one journal per entity, got %d", journals)
	}

	// Splitting preserves the total across the two parts.
	var totalUSD decimal.Decimal
	if err := testDB.Pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_usd), 0) FROM documents`).Scan(&totalUSD); err != nil {
		t.Fatalf("failed to sum document totals: %v", err)
	}
	if !totalUSD.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected combined total of 100 USD, got %s", totalUSD)
	}

	// Replaying the parent maps onto the same children: no duplicates.
	if err := p.Redis.FlushAll(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
	if _, err := p.Process.Process(ctx, "evt-mixed"); err != nil {
		t.Fatalf("failed to replay parent: %v", err)
	}

	var events int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE parent_id = 'evt-mixed'`).Scan(&events); err != nil {
		t.Fatalf("failed to count children: %v", err)
	}
	if events != 2 {
		t.Errorf("expected exactly 2 children after replay, got %d", events)
	}

	// The device resubmits the parent: its verdict is derived from the
	// children, even with the cached result gone.
	results, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-mixed", Type: domain.EventSaleCompleted, Payload: mixed},
	})
	if err != nil {
		t.Fatalf("failed to resubmit parent: %v", err)
	}
	if results[0].Status != domain.EventProcessed {
		t.Errorf("expected processed parent verdict, got %s", results[0].Status)
	}
	if len(results[0].SubEvents) != 2 {
		t.Errorf("expected a verdict per entity, got %d", len(results[0].SubEvents))
	}
}
