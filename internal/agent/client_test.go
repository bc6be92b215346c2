package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/domain"
)

func TestClientSubmitBatch(t *testing.T) {
	var gotDeviceID, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDeviceID = r.Header.Get("X-Device-ID")
		gotAuth = r.Header.Get("Authorization")

		var req dto.SubmitBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		resp := dto.SubmitBatchResponse{Results: []domain.SubmitResult{
			{EventID: req.Events[0].ID, Status: domain.EventPending},
		}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "dev-1", "secret", time.Second)

	results, err := client.SubmitBatch(context.Background(), []QueuedEvent{queuedEvent("evt-1")})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if gotDeviceID != "dev-1" || gotAuth != "Bearer secret" {
		t.Fatalf("expected device credentials on request, got id=%q auth=%q", gotDeviceID, gotAuth)
	}

	if len(results) != 1 || results[0].EventID != "evt-1" || results[0].Status != domain.EventPending {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClientMapsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "dev-1", "stale-token", time.Second)

	_, err := client.SubmitBatch(context.Background(), []QueuedEvent{queuedEvent("evt-1")})
	if !errors.Is(err, domain.ErrDeviceUnauthorized) {
		t.Fatalf("expected ErrDeviceUnauthorized, got %v", err)
	}
}

func TestClientPullUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("after_seq"); got != "5" {
			t.Errorf("expected after_seq=5, got %q", got)
		}
		batch := domain.UpdateBatch{
			Updates: []domain.Update{{Seq: 6, Kind: domain.UpdateItem, RefID: "itm-1", Body: json.RawMessage(`{}`)}},
			NextSeq: 6,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(batch)
	}))
	defer server.Close()

	client := NewClient(server.URL, "dev-1", "secret", time.Second)

	batch, err := client.PullUpdates(context.Background(), 5, 100)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}

	if len(batch.Updates) != 1 || batch.Updates[0].Seq != 6 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "dev-1", "secret", time.Second)

	if err := client.Heartbeat(context.Background(), 0, nil, "1.0.0"); err == nil {
		t.Fatalf("expected error on server failure")
	}
}
