package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/retailsync/ledger/internal/domain"
)

type fakeAuthenticator struct {
	device *domain.Device
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, deviceID, token string) (*domain.Device, error) {
	if f.device != nil && deviceID == f.device.ID && token == "valid" {
		return f.device, nil
	}
	return nil, domain.ErrDeviceUnauthorized
}

func TestDeviceAuth(t *testing.T) {
	dev := &domain.Device{ID: "dev-1", CompanyID: "co-1", Active: true}
	var seen *domain.Device
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := DeviceAuth(&fakeAuthenticator{device: dev})(next)

	t.Run("valid credentials", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodPost, "/sync/events", nil)
		req.Header.Set("X-Device-ID", "dev-1")
		req.Header.Set("Authorization", "Bearer valid")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
		if seen == nil || seen.ID != "dev-1" {
			t.Fatalf("expected device in context, got %+v", seen)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sync/events", nil)
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sync/events", nil)
		req.Header.Set("X-Device-ID", "dev-1")
		req.Header.Set("Authorization", "Bearer stolen")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sync/events", nil)
		req.Header.Set("X-Device-ID", "dev-1")
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestOperatorAuth(t *testing.T) {
	var operator string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := OperatorAuth("topsecret")(next)

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/outbox/evt-1/requeue", nil)
		req.Header.Set("X-API-Key", "topsecret")
		req.Header.Set("X-Operator", "nadia")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
		if operator != "nadia" {
			t.Fatalf("expected operator name in context, got %q", operator)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/outbox/evt-1/requeue", nil)
		req.Header.Set("X-API-Key", "guess")
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("empty configured key rejects all", func(t *testing.T) {
		closed := OperatorAuth("")(next)
		req := httptest.NewRequest(http.MethodPost, "/outbox/evt-1/requeue", nil)
		rec := httptest.NewRecorder()

		closed.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 when no key configured, got %d", rec.Code)
		}
	})
}
