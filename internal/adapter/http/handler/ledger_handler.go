package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/retailsync/ledger/internal/adapter/http/dto"
	"github.com/retailsync/ledger/internal/adapter/http/middleware"
	"github.com/retailsync/ledger/internal/domain"
	"github.com/retailsync/ledger/internal/usecase"
)

// LedgerHandler serves journals, consistency checks, period locks and
// exchange rates.
type LedgerHandler struct {
	ledgerUC *usecase.LedgerUseCase
	periodUC *usecase.PeriodUseCase
	rateUC   *usecase.RateUseCase
	pullUC   *usecase.PullUseCase
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC *usecase.LedgerUseCase, periodUC *usecase.PeriodUseCase, rateUC *usecase.RateUseCase, pullUC *usecase.PullUseCase) *LedgerHandler {
	return &LedgerHandler{
		ledgerUC: ledgerUC,
		periodUC: periodUC,
		rateUC:   rateUC,
		pullUC:   pullUC,
	}
}

// GetJournal retrieves a journal with its lines.
func (h *LedgerHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing journal ID", "")
		return
	}

	journal, err := h.ledgerUC.GetJournal(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get journal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.JournalFromDomain(journal))
}

// ReverseJournal posts a mirror journal that cancels the original.
func (h *LedgerHandler) ReverseJournal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing journal ID", "")
		return
	}

	reversal, err := h.ledgerUC.Reverse(r.Context(), id, middleware.OperatorFromContext(r.Context()))
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reverse journal", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.JournalFromDomain(reversal))
}

// CheckConsistency runs the full-ledger balance check for a company.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required", "")
		return
	}

	report, err := h.ledgerUC.CheckConsistency(r.Context(), companyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "consistency check failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// SetPeriodLock creates or updates a period lock.
func (h *LedgerHandler) SetPeriodLock(w http.ResponseWriter, r *http.Request) {
	var req dto.SetPeriodLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	lock, err := h.periodUC.SetLock(r.Context(), input)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to set period lock", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodLockFromDomain(lock))
}

// ListPeriodLocks lists the period locks of a company.
func (h *LedgerHandler) ListPeriodLocks(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required", "")
		return
	}

	locks, err := h.periodUC.ListLocks(r.Context(), companyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list period locks", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PeriodLocksFromDomain(locks))
}

// SetRate stores an exchange rate and publishes it to the device feed.
func (h *LedgerHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req dto.SetRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rate_date", err.Error())
		return
	}

	rate, err := h.rateUC.SetRate(r.Context(), input)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to set rate", err.Error())
		return
	}

	resp := dto.RateFromDomain(rate)
	if body, err := json.Marshal(resp); err == nil {
		// Devices learn new rates through the pull feed.
		if _, err := h.pullUC.Publish(r.Context(), domain.UpdateRate, rate.ID, body); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to publish rate", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRates lists stored rates in a date range.
func (h *LedgerHandler) ListRates(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateQuery(r, "from", time.Now().UTC().AddDate(0, -1, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date", err.Error())
		return
	}
	to, err := parseDateQuery(r, "to", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date", err.Error())
		return
	}
	limit := parseIntQuery(r, "limit", 0)

	rates, err := h.rateUC.ListRates(r.Context(), from, to, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rates", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RatesFromDomain(rates))
}

func parseDateQuery(r *http.Request, key string, defaultValue time.Time) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue, nil
	}
	return time.Parse("2006-01-02", val)
}
