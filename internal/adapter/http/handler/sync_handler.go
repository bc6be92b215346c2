package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// SyncHandler serves the device-facing sync surface: outbox flush, the
// catalog pull feed and heartbeats.
type SyncHandler struct {
	ingestUC *usecase.IngestUseCase
	pullUC   *usecase.PullUseCase
	deviceUC *usecase.DeviceUseCase
	rateUC   *usecase.RateUseCase
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(ingestUC *usecase.IngestUseCase, pullUC *usecase.PullUseCase, deviceUC *usecase.DeviceUseCase, rateUC *usecase.RateUseCase) *SyncHandler {
	return &SyncHandler{
		ingestUC: ingestUC,
		pullUC:   pullUC,
		deviceUC: deviceUC,
		rateUC:   rateUC,
	}
}

// SubmitBatch ingests a batch of queued events from a device.
func (h *SyncHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	device, ok := middleware.DeviceFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "device not authenticated", "")
		return
	}

	var req dto.SubmitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "empty batch", "")
		return
	}

	results, err := h.ingestUC.SubmitBatch(r.Context(), device, req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to ingest batch", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SubmitBatchResponse{Results: results})
}

// Pull serves one page of the catalog feed after the device's cursor.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	afterSeq := parseInt64Query(r, "after_seq", 0)
	limit := parseIntQuery(r, "limit", 100)

	batch, err := h.pullUC.Pull(r.Context(), afterSeq, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read update feed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// CurrentRate returns today's resolved exchange rate so a device can
// price offline with the same rate the server will freeze at posting.
func (h *SyncHandler) CurrentRate(w http.ResponseWriter, r *http.Request) {
	rateType := domain.RateType(r.URL.Query().Get("type"))
	if rateType == "" {
		rateType = domain.RateMarket
	}

	resolved, err := h.rateUC.Resolve(r.Context(), time.Now().UTC(), rateType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve rate", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ResolvedRateFromDomain(resolved))
}

// Heartbeat records a device liveness report.
func (h *SyncHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	device, ok := middleware.DeviceFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "device not authenticated", "")
		return
	}

	var req dto.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.deviceUC.Heartbeat(r.Context(), req.ToDomain(device.ID, time.Now().UTC())); err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to record heartbeat", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
