package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// OutboxHandler serves the operator view of the server-side outbox.
type OutboxHandler struct {
	outboxUC *usecase.OutboxUseCase
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(outboxUC *usecase.OutboxUseCase) *OutboxHandler {
	return &OutboxHandler{outboxUC: outboxUC}
}

// List lists events filtered by status, device, company or type.
func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.EventFilter{
		Status:    domain.EventStatus(r.URL.Query().Get("status")),
		DeviceID:  r.URL.Query().Get("device_id"),
		CompanyID: r.URL.Query().Get("company_id"),
		Type:      domain.EventType(r.URL.Query().Get("type")),
		Limit:     parseIntQuery(r, "limit", 0),
		Offset:    parseIntQuery(r, "offset", 0),
	}
	if filter.Status != "" && !domain.ValidEventStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid status filter", string(filter.Status))
		return
	}

	events, err := h.outboxUC.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}

// Get retrieves one event with its failure detail.
func (h *OutboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing event ID", "")
		return
	}

	event, err := h.outboxUC.Get(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get event", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}

// Requeue puts a failed or dead event back in line for processing.
func (h *OutboxHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing event ID", "")
		return
	}

	var req dto.RequeueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	event, err := h.outboxUC.Requeue(r.Context(), usecase.RequeueInput{
		EventID:      id,
		ResetHistory: req.ResetHistory,
		Operator:     middleware.OperatorFromContext(r.Context()),
	})
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to requeue event", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}

// Stats reports event counts by status.
func (h *OutboxHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.outboxUC.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.OutboxStatsFromDomain(counts))
}
