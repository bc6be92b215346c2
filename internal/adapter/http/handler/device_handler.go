package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
	"github.com/retailsync/ledger/internal/usecase"
)

// DeviceHandler serves operator device administration.
type DeviceHandler struct {
	deviceUC *usecase.DeviceUseCase
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(deviceUC *usecase.DeviceUseCase) *DeviceHandler {
	return &DeviceHandler{deviceUC: deviceUC}
}

// Register creates a device and returns its one-time raw token.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.CompanyID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "company_id and name are required", "")
		return
	}

	out, err := h.deviceUC.Register(r.Context(), usecase.RegisterInput{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Operator:  middleware.OperatorFromContext(r.Context()),
	})
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to register device", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.RegisterDeviceResponse{
		Device: dto.DeviceFromDomain(out.Device),
		Token:  out.Token,
	})
}

// ResetToken revokes the current credential and issues a new one.
func (h *DeviceHandler) ResetToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing device ID", "")
		return
	}

	out, err := h.deviceUC.ResetToken(r.Context(), id, middleware.OperatorFromContext(r.Context()))
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reset token", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RegisterDeviceResponse{
		Device: dto.DeviceFromDomain(out.Device),
		Token:  out.Token,
	})
}

// Disable blocks further sync traffic from a device.
func (h *DeviceHandler) Disable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing device ID", "")
		return
	}

	if err := h.deviceUC.Disable(r.Context(), id, middleware.OperatorFromContext(r.Context())); err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to disable device", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// List lists the registered devices of a company.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required", "")
		return
	}

	devices, err := h.deviceUC.List(r.Context(), companyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.DevicesFromDomain(devices))
}
