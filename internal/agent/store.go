package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/retailsync/ledger/internal/domain"
)

// DefaultMaxQueued caps how many unacked events the store holds before
// Enqueue starts failing with ErrStoreFull.
const DefaultMaxQueued = 10000

// QueuedEvent is one locally captured event awaiting sync.
type QueuedEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type record struct {
	Kind   string       `json:"kind"`
	Event  *QueuedEvent `json:"event,omitempty"`
	ID     string       `json:"id,omitempty"`
	Cursor int64        `json:"cursor,omitempty"`
}

const (
	recordEvent  = "event"
	recordAck    = "ack"
	recordCursor = "cursor"
)

// FileStore is a durable append-only store for the device outbox. Every
// mutation is a JSON line fsynced to disk before it is acknowledged, so
// a crash never loses an accepted event. Acked events are dropped on
// compaction.
type FileStore struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	maxQueued int

	order  []string
	events map[string]QueuedEvent
	acked  map[string]bool
	cursor int64
}

// OpenFileStore opens the store at path, replaying the log to rebuild
// the in-memory index. maxQueued <= 0 uses DefaultMaxQueued.
func OpenFileStore(path string, maxQueued int) (*FileStore, error) {
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueued
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		path:      path,
		maxQueued: maxQueued,
		events:    map[string]QueuedEvent{},
		acked:     map[string]bool{},
	}
	if err := s.replay(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.file = file
	return s, nil
}

func (s *FileStore) replay() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open store for replay: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line from a crash mid-write. Everything
			// before it is intact.
			break
		}
		switch rec.Kind {
		case recordEvent:
			if rec.Event == nil {
				continue
			}
			if _, ok := s.events[rec.Event.ID]; !ok {
				s.order = append(s.order, rec.Event.ID)
			}
			s.events[rec.Event.ID] = *rec.Event
		case recordAck:
			s.acked[rec.ID] = true
		case recordCursor:
			s.cursor = rec.Cursor
		}
	}
	return scanner.Err()
}

func (s *FileStore) appendRecord(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to store: %w", err)
	}
	return s.file.Sync()
}

// Append stores an event. It fails with ErrStoreFull when the unacked
// backlog has reached the cap.
func (s *FileStore) Append(event QueuedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unackedLocked() >= s.maxQueued {
		return domain.ErrStoreFull
	}
	if _, exists := s.events[event.ID]; exists {
		return nil
	}

	if err := s.appendRecord(record{Kind: recordEvent, Event: &event}); err != nil {
		return err
	}
	s.order = append(s.order, event.ID)
	s.events[event.ID] = event
	return nil
}

// Unacked returns up to max unacked events in enqueue order.
func (s *FileStore) Unacked(max int) []QueuedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QueuedEvent, 0, max)
	for _, id := range s.order {
		if s.acked[id] {
			continue
		}
		out = append(out, s.events[id])
		if len(out) == max {
			break
		}
	}
	return out
}

// MarkAcked records that events reached a terminal state server-side.
func (s *FileStore) MarkAcked(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.events[id]; !ok || s.acked[id] {
			continue
		}
		if err := s.appendRecord(record{Kind: recordAck, ID: id}); err != nil {
			return err
		}
		s.acked[id] = true
	}
	return nil
}

// Cursor returns the persisted pull feed position.
func (s *FileStore) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SetCursor persists a new pull feed position.
func (s *FileStore) SetCursor(seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.cursor {
		return nil
	}
	if err := s.appendRecord(record{Kind: recordCursor, Cursor: seq}); err != nil {
		return err
	}
	s.cursor = seq
	return nil
}

// Depth returns the number of unacked events.
func (s *FileStore) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unackedLocked()
}

// Oldest returns the capture time of the oldest unacked event.
func (s *FileStore) Oldest() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if s.acked[id] {
			continue
		}
		ev := s.events[id]
		t := ev.CreatedAt
		return &t
	}
	return nil
}

func (s *FileStore) unackedLocked() int {
	n := 0
	for _, id := range s.order {
		if !s.acked[id] {
			n++
		}
	}
	return n
}

// Compact rewrites the log keeping only unacked events and the cursor.
// The swap is atomic: the old log stays valid until the rename.
func (s *FileStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}

	write := func(rec record) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tmp.Write(append(data, '\n'))
		return err
	}

	if s.cursor > 0 {
		if err := write(record{Kind: recordCursor, Cursor: s.cursor}); err != nil {
			tmp.Close()
			return err
		}
	}
	kept := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.acked[id] {
			continue
		}
		ev := s.events[id]
		if err := write(record{Kind: recordEvent, Event: &ev}); err != nil {
			tmp.Close()
			return err
		}
		kept = append(kept, id)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := s.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to swap compacted store: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen store: %w", err)
	}
	s.file = file

	events := make(map[string]QueuedEvent, len(kept))
	for _, id := range kept {
		events[id] = s.events[id]
	}
	s.order = kept
	s.events = events
	s.acked = map[string]bool{}
	return nil
}

// Close closes the underlying file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
