package integration

import (
	"context"
	"testing"
	"time"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/tests/testutil"
)

func TestSubmitBatchAcceptsAndEnqueues(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
	p := newPipeline(t, testDB)

	results, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-1", Type: domain.EventSaleCompleted, Payload: testutil.CashSalePayload(89500), CreatedAt: time.Now().UTC()},
		{EventID: "evt-2", Type: domain.EventPurchaseReceived, Payload: testutil.PurchaseReceiptPayload(89500, "sup-1"), CreatedAt: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Status != domain.EventPending {
			t.Errorf("result %d: expected pending, got %s (%s)", i, res.Status, res.Error)
		}
	}

	if ids := p.Enq.EnqueuedIDs(); len(ids) != 2 {
		t.Errorf("expected 2 enqueued events, got %v", ids)
	}

	var count int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE device_id = $1`, device.ID).Scan(&count); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 event rows, got %d", count)
	}
}

func TestSubmitBatchIsolatesBadEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	device := testDB.CreateTestDevice(ctx, "co-1", "pos-front")
	p := newPipeline(t, testDB)

	results, err := p.Ingest.SubmitBatch(ctx, device, []usecase.SubmitEventInput{
		{EventID: "evt-bad-type", Type: "inventory.counted", Payload: testutil.CashSalePayload(89500)},
		{EventID: "evt-good", Type: domain.EventSaleCompleted, Payload: testutil.CashSalePayload(89500)},
		{EventID: "evt-no-payload", Type: domain.EventSaleCompleted},
	})
	if err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	if results[0].Status != domain.EventFailed {
		t.Errorf("unknown type: expected failed, got %s", results[0].Status)
	}
	if results[1].Status != domain.EventPending {
		t.Errorf("good event: expected pending, got %s (%s)", results[1].Status, results[1].Error)
	}
	if results[2].Status != domain.EventFailed {
		t.Errorf("empty payload: expected failed, got %s", results[2].Status)
	}

	if ids := p.Enq.EnqueuedIDs(); len(ids) != 1 || ids[0] != "evt-good" {
		t.Errorf("expected only evt-good enqueued, got %v", ids)
	}

	// Rejected envelopes still leave rows behind for the operator outbox.
	for _, id := range []string{"evt-bad-type", "evt-no-payload"} {
		row, err := p.Outbox.Get(ctx, id)
		if err != nil {
			t.Fatalf("failed to load rejected event %s: %v", id, err)
		}
		if row.Status != domain.EventFailed {
			t.Errorf("%s: expected failed row, got %s", id, row.Status)
		}
		if row.ErrorMessage == nil {
			t.Errorf("%s: expected the rejection message on the row", id)
		}
		if row.NextAttemptAt != nil {
			t.Errorf("%s: expected no retry schedule, got %v", id, row.NextAttemptAt)
		}
	}
}

func TestDuplicateSubmitReportsLifecycle(t *testing.T) {
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

	batch := []usecase.SubmitEventInput{
		{EventID: "evt-dup", Type: domain.EventSaleCompleted, Payload: testutil.CashSalePayload(89500)},
	}
	if _, err := p.Ingest.SubmitBatch(ctx, device, batch); err != nil {
		t.Fatalf("failed to submit batch: %v", err)
	}

	// Resubmit before processing: the event is still in flight.
	results, err := p.Ingest.SubmitBatch(ctx, device, batch)
	if err != nil {
		t.Fatalf("failed to resubmit batch: %v", err)
	}
	if results[0].Status != domain.EventPending {
		t.Errorf("pre-processing duplicate: expected pending, got %s", results[0].Status)
	}

	if _, err := p.Process.Process(ctx, "evt-dup"); err != nil {
		t.Fatalf("failed to process event: %v", err)
	}

	// Resubmit after processing: the terminal verdict comes back.
	results, err = p.Ingest.SubmitBatch(ctx, device, batch)
	if err != nil {
		t.Fatalf("failed to resubmit batch: %v", err)
	}
	if results[0].Status != domain.EventProcessed {
		t.Errorf("post-processing duplicate: expected processed, got %s (%s)", results[0].Status, results[0].Error)
	}

	var count int
	if err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE id = 'evt-dup'`).Scan(&count); err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single event row, got %d", count)
	}
}
