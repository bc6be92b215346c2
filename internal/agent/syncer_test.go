package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailsync/ledger/internal/domain"
)

type fakeTransport struct {
	results    map[string]domain.SubmitResult
	submitErr  error
	submits    [][]string
	updates    []domain.Update
	heartbeats int
}

func (f *fakeTransport) SubmitBatch(ctx context.Context, events []QueuedEvent) ([]domain.SubmitResult, error) {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	f.submits = append(f.submits, ids)

	if f.submitErr != nil {
		return nil, f.submitErr
	}

	out := make([]domain.SubmitResult, len(events))
	for i, ev := range events {
		if res, ok := f.results[ev.ID]; ok {
			out[i] = res
		} else {
			out[i] = domain.SubmitResult{EventID: ev.ID, Status: domain.EventProcessed}
		}
	}
	return out, nil
}

func (f *fakeTransport) PullUpdates(ctx context.Context, afterSeq int64, limit int) (*domain.UpdateBatch, error) {
	var page []domain.Update
	for _, u := range f.updates {
		if u.Seq > afterSeq {
			page = append(page, u)
		}
		if len(page) == limit {
			break
		}
	}
	next := afterSeq
	if len(page) > 0 {
		next = page[len(page)-1].Seq
	}
	return &domain.UpdateBatch{Updates: page, NextSeq: next}, nil
}

func (f *fakeTransport) Heartbeat(ctx context.Context, depth int, oldest *time.Time, appVersion string) error {
	f.heartbeats++
	return nil
}

func newSyncerFixture(t *testing.T, transport *fakeTransport, applier Applier) (*Syncer, *Queue, *FileStore) {
	t.Helper()

	store, err := OpenFileStore(filepath.Join(t.TempDir(), "outbox.log"), 0)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	queue := NewQueue(store)
	syncer := NewSyncer(SyncerConfig{
		Queue:     queue,
		Cursor:    store,
		Transport: transport,
		Applier:   applier,
		Logger:    zerolog.Nop(),
	})
	return syncer, queue, store
}

func enqueueTestEvent(t *testing.T, queue *Queue) string {
	t.Helper()
	id, err := queue.Enqueue("sale.completed", json.RawMessage(`{"total_usd":"10"}`))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return id
}

func TestSyncerFlushAcksProcessed(t *testing.T) {
	transport := &fakeTransport{}
	syncer, queue, _ := newSyncerFixture(t, transport, nil)

	enqueueTestEvent(t, queue)
	enqueueTestEvent(t, queue)

	if err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if queue.Depth() != 0 {
		t.Fatalf("expected drained queue, got depth %d", queue.Depth())
	}

	if transport.heartbeats != 1 {
		t.Fatalf("expected one heartbeat, got %d", transport.heartbeats)
	}
}

func TestSyncerKeepsUnsettledEvents(t *testing.T) {
	transport := &fakeTransport{results: map[string]domain.SubmitResult{}}
	syncer, queue, _ := newSyncerFixture(t, transport, nil)

	id := enqueueTestEvent(t, queue)
	transport.results[id] = domain.SubmitResult{EventID: id, Status: domain.EventPending}

	if err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// Pending events stay queued for the next cycle.
	if queue.Depth() != 1 {
		t.Fatalf("expected pending event to remain queued, got depth %d", queue.Depth())
	}

	if len(transport.submits) != 1 {
		t.Fatalf("expected a single submit per cycle, got %d", len(transport.submits))
	}
}

func TestSyncerAcksDeadEvents(t *testing.T) {
	transport := &fakeTransport{results: map[string]domain.SubmitResult{}}
	syncer, queue, _ := newSyncerFixture(t, transport, nil)

	id := enqueueTestEvent(t, queue)
	transport.results[id] = domain.SubmitResult{EventID: id, Status: domain.EventDead, Error: "bad payload"}

	if err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// Dead is terminal: resubmitting forever would never change it.
	if queue.Depth() != 0 {
		t.Fatalf("expected dead event to be acked, got depth %d", queue.Depth())
	}
}

func TestSyncerStopsOnUnauthorized(t *testing.T) {
	transport := &fakeTransport{submitErr: domain.ErrDeviceUnauthorized}
	syncer, queue, _ := newSyncerFixture(t, transport, nil)

	enqueueTestEvent(t, queue)

	err := syncer.SyncOnce(context.Background())
	if !errors.Is(err, domain.ErrDeviceUnauthorized) {
		t.Fatalf("expected ErrDeviceUnauthorized, got %v", err)
	}

	// No retry storm on credential failures.
	if len(transport.submits) != 1 {
		t.Fatalf("expected a single submit attempt, got %d", len(transport.submits))
	}
}

func TestSyncerPullAdvancesCursor(t *testing.T) {
	applied := []int64{}
	applier := ApplierFunc(func(u domain.Update) error {
		applied = append(applied, u.Seq)
		return nil
	})

	transport := &fakeTransport{updates: []domain.Update{
		{Seq: 1, Kind: domain.UpdateItem, RefID: "itm-1", Body: json.RawMessage(`{}`)},
		{Seq: 2, Kind: domain.UpdatePrice, RefID: "itm-1", Body: json.RawMessage(`{}`)},
	}}
	syncer, _, store := newSyncerFixture(t, transport, applier)

	if err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(applied) != 2 {
		t.Fatalf("expected 2 updates applied, got %v", applied)
	}
	if store.Cursor() != 2 {
		t.Fatalf("expected cursor 2, got %d", store.Cursor())
	}

	// A second cycle pulls nothing new and applies nothing twice.
	if err := syncer.SyncOnce(context.Background()); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected no reapplied updates, got %v", applied)
	}
}

func TestSyncerDoesNotAdvancePastFailedUpdate(t *testing.T) {
	applier := ApplierFunc(func(u domain.Update) error {
		if u.Seq == 2 {
			return errors.New("corrupt body")
		}
		return nil
	})

	transport := &fakeTransport{updates: []domain.Update{
		{Seq: 1, Kind: domain.UpdateItem, RefID: "itm-1", Body: json.RawMessage(`{}`)},
		{Seq: 2, Kind: domain.UpdateItem, RefID: "itm-2", Body: json.RawMessage(`{}`)},
	}}
	syncer, _, store := newSyncerFixture(t, transport, applier)

	if err := syncer.SyncOnce(context.Background()); err == nil {
		t.Fatalf("expected sync to surface the apply failure")
	}

	if store.Cursor() != 1 {
		t.Fatalf("expected cursor to stop before the failed update, got %d", store.Cursor())
	}
}
