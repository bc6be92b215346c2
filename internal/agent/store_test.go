package agent

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/retailsync/ledger/internal/domain"
)

func openTestStore(t *testing.T, maxQueued int) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outbox.log")
	store, err := OpenFileStore(path, maxQueued)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func queuedEvent(id string) QueuedEvent {
	return QueuedEvent{
		ID:        id,
		Type:      "sale.completed",
		Payload:   json.RawMessage(`{"total_usd":"10"}`),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileStoreAppendAndUnacked(t *testing.T) {
	store, _ := openTestStore(t, 0)

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := store.Append(queuedEvent(id)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	batch := store.Unacked(2)
	if len(batch) != 2 || batch[0].ID != "evt-1" || batch[1].ID != "evt-2" {
		t.Fatalf("expected first two events in order, got %+v", batch)
	}

	if store.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", store.Depth())
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	store, path := openTestStore(t, 0)

	if err := store.Append(queuedEvent("evt-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(queuedEvent("evt-2")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.MarkAcked([]string{"evt-1"}); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	if err := store.SetCursor(42); err != nil {
		t.Fatalf("set cursor failed: %v", err)
	}
	store.Close()

	reopened, err := OpenFileStore(path, 0)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	batch := reopened.Unacked(10)
	if len(batch) != 1 || batch[0].ID != "evt-2" {
		t.Fatalf("expected evt-2 to survive reopen, got %+v", batch)
	}

	if reopened.Cursor() != 42 {
		t.Fatalf("expected cursor 42 after reopen, got %d", reopened.Cursor())
	}
}

func TestFileStoreFull(t *testing.T) {
	store, _ := openTestStore(t, 2)

	if err := store.Append(queuedEvent("evt-1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(queuedEvent("evt-2")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	err := store.Append(queuedEvent("evt-3"))
	if !errors.Is(err, domain.ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}

	// Acking frees capacity.
	if err := store.MarkAcked([]string{"evt-1"}); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	if err := store.Append(queuedEvent("evt-3")); err != nil {
		t.Fatalf("expected append to succeed after ack, got %v", err)
	}
}

func TestFileStoreAppendIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t, 0)

	ev := queuedEvent("evt-1")
	if err := store.Append(ev); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(ev); err != nil {
		t.Fatalf("duplicate append failed: %v", err)
	}

	if store.Depth() != 1 {
		t.Fatalf("expected single event after duplicate append, got depth %d", store.Depth())
	}
}

func TestFileStoreCompact(t *testing.T) {
	store, path := openTestStore(t, 0)

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := store.Append(queuedEvent(id)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := store.MarkAcked([]string{"evt-1", "evt-3"}); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	if err := store.SetCursor(7); err != nil {
		t.Fatalf("set cursor failed: %v", err)
	}

	if err := store.Compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	batch := store.Unacked(10)
	if len(batch) != 1 || batch[0].ID != "evt-2" {
		t.Fatalf("expected only evt-2 after compaction, got %+v", batch)
	}

	// The compacted log must replay to the same state.
	store.Close()
	reopened, err := OpenFileStore(path, 0)
	if err != nil {
		t.Fatalf("failed to reopen compacted store: %v", err)
	}
	defer reopened.Close()

	if reopened.Depth() != 1 || reopened.Cursor() != 7 {
		t.Fatalf("expected depth 1 cursor 7 after compaction, got depth %d cursor %d",
			reopened.Depth(), reopened.Cursor())
	}

	// Appends keep working on the swapped file.
	if err := reopened.Append(queuedEvent("evt-4")); err != nil {
		t.Fatalf("append after compaction failed: %v", err)
	}
}

func TestFileStoreCursorNeverRewinds(t *testing.T) {
	store, _ := openTestStore(t, 0)

	if err := store.SetCursor(10); err != nil {
		t.Fatalf("set cursor failed: %v", err)
	}
	if err := store.SetCursor(5); err != nil {
		t.Fatalf("set cursor failed: %v", err)
	}

	if store.Cursor() != 10 {
		t.Fatalf("expected cursor to stay at 10, got %d", store.Cursor())
	}
}
