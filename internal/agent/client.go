package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/domain"
)

// Client talks to the sync server with device credentials.
type Client struct {
	baseURL  string
	deviceID string
	token    string
	http     *http.Client
}

// NewClient creates a sync client for one device.
func NewClient(baseURL, deviceID, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		deviceID: deviceID,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", c.deviceID)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrDeviceUnauthorized
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sync server returned %d: %s", resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SubmitBatch flushes queued events and returns the per-event results.
func (c *Client) SubmitBatch(ctx context.Context, events []QueuedEvent) ([]domain.SubmitResult, error) {
	req := dto.SubmitBatchRequest{Events: make([]dto.SubmitEventItem, len(events))}
	for i, ev := range events {
		created := ev.CreatedAt
		req.Events[i] = dto.SubmitEventItem{
			ID:        ev.ID,
			Type:      ev.Type,
			Payload:   ev.Payload,
			CreatedAt: &created,
		}
	}

	var resp dto.SubmitBatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync/events", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// PullUpdates fetches one page of the catalog feed after the cursor.
func (c *Client) PullUpdates(ctx context.Context, afterSeq int64, limit int) (*domain.UpdateBatch, error) {
	path := "/api/v1/sync/updates?after_seq=" + strconv.FormatInt(afterSeq, 10) +
		"&limit=" + strconv.Itoa(limit)

	var batch domain.UpdateBatch
	if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Heartbeat reports device liveness and local queue pressure.
func (c *Client) Heartbeat(ctx context.Context, depth int, oldest *time.Time, appVersion string) error {
	req := dto.HeartbeatRequest{
		QueueDepth:   depth,
		OldestQueued: oldest,
		AppVersion:   appVersion,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/sync/heartbeat", req, nil)
}

// CurrentRate fetches the rate the server would freeze for today.
func (c *Client) CurrentRate(ctx context.Context) (*dto.ResolvedRateResponse, error) {
	var rate dto.ResolvedRateResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/rate", nil, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}
