package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/retailsync/ledger/internal/domain"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// DeviceContextKey is the context key for the authenticated device
	DeviceContextKey ContextKey = "device"
	// OperatorContextKey is the context key for the operator name
	OperatorContextKey ContextKey = "operator"
)

// DeviceAuthenticator verifies a device credential.
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, deviceID, token string) (*domain.Device, error)
}

// DeviceAuth authenticates POS devices by id and bearer token. Every
// rejection is uniform so a probe cannot tell an unknown device from a
// bad token or a disabled registration.
func DeviceAuth(devices DeviceAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := r.Header.Get("X-Device-ID")
			token := bearerToken(r)
			if deviceID == "" || token == "" {
				http.Error(w, "device credentials rejected", http.StatusUnauthorized)
				return
			}

			device, err := devices.Authenticate(r.Context(), deviceID, token)
			if err != nil {
				http.Error(w, "device credentials rejected", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), DeviceContextKey, device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorAuth guards admin endpoints with a static API key. The
// operator name travels in X-Operator for the audit trail.
func OperatorAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			operator := r.Header.Get("X-Operator")
			if operator == "" {
				operator = "operator"
			}

			ctx := context.WithValue(r.Context(), OperatorContextKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// DeviceFromContext extracts the authenticated device from context
func DeviceFromContext(ctx context.Context) (*domain.Device, bool) {
	device, ok := ctx.Value(DeviceContextKey).(*domain.Device)
	return device, ok
}

// OperatorFromContext extracts the operator name from context
func OperatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(OperatorContextKey).(string)
	return operator
}
