package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
	"github.com/retailsync/ledger/internal/usecase/mocks"
)

type stubConverter struct {
	fn func(ctx context.Context, event *domain.Event) (*usecase.ConvertedDocument, error)
}

func (s *stubConverter) Convert(ctx context.Context, event *domain.Event) (*usecase.ConvertedDocument, error) {
	return s.fn(ctx, event)
}

type stubPoster struct {
	fn func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error)
}

func (s *stubPoster) Post(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
	return s.fn(ctx, tx, conv)
}

type processFixture struct {
	uc        *usecase.ProcessUseCase
	events    *mocks.MockEventRepository
	results   *mocks.MockCache
	enqueuer  *mocks.MockTaskEnqueuer
	converter *stubConverter
	poster    *stubPoster
}

func newProcessFixture() *processFixture {
	f := &processFixture{
		events:   mocks.NewMockEventRepository(),
		results:  mocks.NewMockCache(),
		enqueuer: mocks.NewMockTaskEnqueuer(),
		converter: &stubConverter{fn: func(ctx context.Context, event *domain.Event) (*usecase.ConvertedDocument, error) {
			return &usecase.ConvertedDocument{Doc: &domain.Document{ID: "doc-1", CompanyID: event.CompanyID}}, nil
		}},
		poster: &stubPoster{fn: func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
			return &domain.Journal{ID: "jrn-1"}, nil
		}},
	}
	f.uc = usecase.NewProcessUseCase(
		mocks.NewMockTransactionManager(),
		f.events,
		f.converter,
		f.poster,
		mocks.NewMockIdempotencyStore(),
		f.results,
		f.enqueuer,
		mocks.NewMockAuditRepository(),
		5,
		zerolog.Nop(),
	)
	return f
}

func pendingEvent(id string, attempts int) *domain.Event {
	return &domain.Event{
		ID:           id,
		AttemptCount: attempts,
		DeviceID:     "dev-1",
		CompanyID:    "co-1",
		Type:         domain.EventSaleCompleted,
		Payload:      json.RawMessage(`{"lines":[{"item_id":"a","qty":"1","line_total_usd":"5"}]}`),
		Status:       domain.EventPending,
		CreatedAt:    time.Now().UTC().Add(-time.Minute),
	}
}

func TestProcessSuccess(t *testing.T) {
	f := newProcessFixture()
	f.events.Seed(pendingEvent("evt-1", 0))

	out, err := f.uc.Process(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventProcessed || out.Attempt != 1 {
		t.Fatalf("outcome = %+v", out)
	}

	ev, _ := f.events.GetByID(context.Background(), "evt-1")
	if ev.Status != domain.EventProcessed || ev.AttemptCount != 1 || ev.ProcessedAt == nil {
		t.Fatalf("event = %+v", ev)
	}

	raw, _ := f.results.Get(context.Background(), "event:result:evt-1")
	if len(raw) == 0 {
		t.Fatal("expected cached terminal result")
	}
}

func TestProcessTransientFailureSchedulesRetry(t *testing.T) {
	f := newProcessFixture()
	f.events.Seed(pendingEvent("evt-1", 0))
	f.poster.fn = func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
		return nil, domain.ErrLockTimeout
	}

	out, err := f.uc.Process(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventFailed || out.Attempt != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.RetryIn <= 0 || out.RetryIn > 301*time.Second {
		t.Fatalf("RetryIn = %s", out.RetryIn)
	}

	ev, _ := f.events.GetByID(context.Background(), "evt-1")
	if ev.Status != domain.EventFailed || ev.AttemptCount != 1 {
		t.Fatalf("event = %+v", ev)
	}
	if ev.NextAttemptAt == nil || !ev.NextAttemptAt.After(time.Now().Add(-time.Second)) {
		t.Fatalf("next attempt = %v", ev.NextAttemptAt)
	}
	if ev.ErrorMessage == nil {
		t.Fatal("expected recorded error message")
	}
}

func TestProcessPermanentFailureParksWithoutRetry(t *testing.T) {
	f := newProcessFixture()
	f.events.Seed(pendingEvent("evt-1", 0))
	f.converter.fn = func(ctx context.Context, event *domain.Event) (*usecase.ConvertedDocument, error) {
		return nil, domain.ErrInvalidPayload
	}

	out, err := f.uc.Process(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventFailed || out.Attempt != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.RetryIn != 0 {
		t.Fatalf("RetryIn = %s, want no retry for a validation failure", out.RetryIn)
	}

	ev, _ := f.events.GetByID(context.Background(), "evt-1")
	if ev.Status != domain.EventFailed {
		t.Fatalf("event status = %s", ev.Status)
	}
	if ev.NextAttemptAt != nil {
		t.Fatalf("next attempt = %v, want parked", ev.NextAttemptAt)
	}

	// Parked events are invisible to the sweeper.
	due, _ := f.events.ListDue(context.Background(), time.Now().UTC().Add(time.Hour), 10)
	if len(due) != 0 {
		t.Fatalf("due = %v, want none", due)
	}
}

func TestProcessExhaustsAttempts(t *testing.T) {
	f := newProcessFixture()
	ev := pendingEvent("evt-1", 0)
	ev.Status = domain.EventFailed
	ev.AttemptCount = 4
	f.events.Seed(ev)
	f.poster.fn = func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
		return nil, errors.New("connection refused")
	}

	out, err := f.uc.Process(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventDead || out.Attempt != 5 {
		t.Fatalf("outcome = %+v, want dead on fifth attempt", out)
	}
}

func TestProcessTerminalIsNoop(t *testing.T) {
	f := newProcessFixture()
	ev := pendingEvent("evt-1", 0)
	ev.Status = domain.EventProcessed
	ev.AttemptCount = 2
	f.events.Seed(ev)
	f.poster.fn = func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
		t.Fatal("terminal event must not be posted again")
		return nil, nil
	}

	out, err := f.uc.Process(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventProcessed || out.Attempt != 2 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestProcessSplitsMixedSale(t *testing.T) {
	f := newProcessFixture()
	payload, _ := json.Marshal(map[string]any{
		"exchange_rate":       "90000",
		"pricing_currency":    "USD",
		"settlement_currency": "USD",
		"warehouse_id":        "wh-1",
		"lines": []map[string]any{
			{"item_id": "a", "qty": "1", "line_total_usd": "10", "entity": "official"},
			{"item_id": "b", "qty": "1", "line_total_usd": "30", "entity": "unofficial"},
		},
		"payments": []map[string]any{{"method": "cash", "amount_usd": "40"}},
	})
	f.events.Seed(&domain.Event{
		ID:        "evt-mix",
		DeviceID:  "dev-1",
		CompanyID: "co-1",
		Type:      domain.EventSaleCompleted,
		Payload:   payload,
		Status:    domain.EventPending,
		CreatedAt: time.Now().UTC(),
	})
	f.poster.fn = func(ctx context.Context, tx usecase.Transaction, conv *usecase.ConvertedDocument) (*domain.Journal, error) {
		t.Fatal("the parent of a split must not post directly")
		return nil, nil
	}

	out, err := f.uc.Process(context.Background(), "evt-mix")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventProcessed {
		t.Fatalf("outcome = %+v", out)
	}

	ctx := context.Background()
	official, err := f.events.GetByID(ctx, "evt-mix:sale:official")
	if err != nil {
		t.Fatalf("official child: %v", err)
	}
	unofficial, err := f.events.GetByID(ctx, "evt-mix:sale:unofficial")
	if err != nil {
		t.Fatalf("unofficial child: %v", err)
	}
	if official.ParentID == nil || *official.ParentID != "evt-mix" {
		t.Fatalf("official parent = %v", official.ParentID)
	}
	if len(f.enqueuer.Enqueued) != 2 {
		t.Fatalf("enqueued children = %v", f.enqueuer.Enqueued)
	}

	// Tender splits pro rata: 10 USD to official, 30 to unofficial.
	var op, up domain.SalePayload
	if err := json.Unmarshal(official.Payload, &op); err != nil {
		t.Fatalf("official payload: %v", err)
	}
	if err := json.Unmarshal(unofficial.Payload, &up); err != nil {
		t.Fatalf("unofficial payload: %v", err)
	}
	if len(op.Lines) != 1 || op.Lines[0].ItemID != "a" {
		t.Fatalf("official lines = %+v", op.Lines)
	}
	if len(up.Lines) != 1 || up.Lines[0].ItemID != "b" {
		t.Fatalf("unofficial lines = %+v", up.Lines)
	}
	if !up.Payments[0].AmountUSD.Equal(up.Lines[0].LineTotalUSD) {
		t.Fatalf("unofficial tender = %s, want 30", up.Payments[0].AmountUSD)
	}
	if !op.Payments[0].AmountUSD.Equal(op.Lines[0].LineTotalUSD) {
		t.Fatalf("official tender = %s, want 10", op.Payments[0].AmountUSD)
	}

	// The device-facing verdict stays pending until both children post.
	raw, _ := f.results.Get(ctx, "event:result:evt-mix")
	var res domain.SubmitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("cached parent result: %v", err)
	}
	if res.Status != domain.EventPending || len(res.SubEvents) != 2 {
		t.Fatalf("parent result = %+v, want pending with two sub-events", res)
	}
}

func TestProcessSplitRejectsUnknownEntity(t *testing.T) {
	f := newProcessFixture()
	payload, _ := json.Marshal(map[string]any{
		"exchange_rate":       "90000",
		"pricing_currency":    "USD",
		"settlement_currency": "USD",
		"warehouse_id":        "wh-1",
		"lines": []map[string]any{
			{"item_id": "a", "qty": "1", "line_total_usd": "10", "entity": "official"},
			{"item_id": "b", "qty": "1", "line_total_usd": "90", "entity": "showroom"},
		},
	})
	f.events.Seed(&domain.Event{
		ID:        "evt-mix",
		DeviceID:  "dev-1",
		CompanyID: "co-1",
		Type:      domain.EventSaleCompleted,
		Payload:   payload,
		Status:    domain.EventPending,
		CreatedAt: time.Now().UTC(),
	})

	out, err := f.uc.Process(context.Background(), "evt-mix")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventFailed {
		t.Fatalf("outcome = %+v, want rejection instead of dropped lines", out)
	}
	if !errors.Is(out.Err, domain.ErrInvalidPayload) {
		t.Fatalf("err = %v", out.Err)
	}
	if _, err := f.events.GetByID(context.Background(), "evt-mix:sale:official"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatal("no child may exist for a rejected split")
	}
	if len(f.enqueuer.Enqueued) != 0 {
		t.Fatalf("enqueued = %v, want none", f.enqueuer.Enqueued)
	}
}

func TestSplitParentVerdictFollowsChildren(t *testing.T) {
	f := newProcessFixture()
	ctx := context.Background()
	parentID := "evt-mix"

	parent := pendingEvent(parentID, 1)
	parent.Status = domain.EventProcessed
	f.events.Seed(parent)

	done := pendingEvent(domain.SubEventID(parentID, domain.EntityOfficial), 1)
	done.ParentID = &parentID
	done.Status = domain.EventProcessed
	f.events.Seed(done)

	last := pendingEvent(domain.SubEventID(parentID, domain.EntityUnofficial), 0)
	last.ParentID = &parentID
	f.events.Seed(last)

	out, err := f.uc.Process(ctx, last.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != domain.EventProcessed {
		t.Fatalf("outcome = %+v", out)
	}

	raw, _ := f.results.Get(ctx, "event:result:"+parentID)
	var res domain.SubmitResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("cached parent result: %v", err)
	}
	if res.Status != domain.EventProcessed || len(res.SubEvents) != 2 {
		t.Fatalf("parent result = %+v, want processed with two sub-events", res)
	}
}

func TestSweepDue(t *testing.T) {
	f := newProcessFixture()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := pendingEvent("evt-due", 0)
	due.Status = domain.EventFailed
	due.NextAttemptAt = &past
	f.events.Seed(due)

	later := pendingEvent("evt-later", 0)
	later.Status = domain.EventFailed
	later.NextAttemptAt = &future
	f.events.Seed(later)

	// A requeued event whose immediate enqueue was lost: pending with an
	// elapsed attempt time.
	requeued := pendingEvent("evt-requeued", 2)
	requeued.NextAttemptAt = &past
	f.events.Seed(requeued)

	n, err := f.uc.SweepDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("SweepDue: %v", err)
	}
	if n != 2 {
		t.Fatalf("swept = %d, want 2", n)
	}
	swept := map[string]bool{}
	for _, id := range f.enqueuer.Enqueued {
		swept[id] = true
	}
	if !swept["evt-due"] || !swept["evt-requeued"] {
		t.Fatalf("enqueued = %v", f.enqueuer.Enqueued)
	}
}
