package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retailsync/ledger/internal/adapter/http/handler"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	SyncHandler   *handler.SyncHandler
	OutboxHandler *handler.OutboxHandler
	DeviceHandler *handler.DeviceHandler
	LedgerHandler *handler.LedgerHandler
	HealthHandler *handler.HealthHandler

	DeviceAuth  middleware.DeviceAuthenticator
	AdminAPIKey string
	RateLimiter *middleware.RateLimiter
	Logging     *middleware.LoggingMiddleware
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Logging != nil {
		r.Use(cfg.Logging.Wrap)
	}
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Device sync surface
	r.Route("/api/v1/sync", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Limit)
		}
		r.Use(middleware.DeviceAuth(cfg.DeviceAuth))

		r.Post("/events", cfg.SyncHandler.SubmitBatch)
		r.Get("/updates", cfg.SyncHandler.Pull)
		r.Get("/rate", cfg.SyncHandler.CurrentRate)
		r.Post("/heartbeat", cfg.SyncHandler.Heartbeat)
	})

	// Operator surface
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.AdminAPIKey))

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/", cfg.OutboxHandler.List)
			r.Get("/stats", cfg.OutboxHandler.Stats)
			r.Get("/{id}", cfg.OutboxHandler.Get)
			r.Post("/{id}/requeue", cfg.OutboxHandler.Requeue)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", cfg.DeviceHandler.Register)
			r.Get("/", cfg.DeviceHandler.List)
			r.Post("/{id}/token", cfg.DeviceHandler.ResetToken)
			r.Post("/{id}/disable", cfg.DeviceHandler.Disable)
		})

		r.Route("/journals", func(r chi.Router) {
			r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Get("/{id}", cfg.LedgerHandler.GetJournal)
			r.Post("/{id}/reverse", cfg.LedgerHandler.ReverseJournal)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.SetRate)
			r.Get("/", cfg.LedgerHandler.ListRates)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.SetPeriodLock)
			r.Get("/", cfg.LedgerHandler.ListPeriodLocks)
		})
	})

	return r
}
