package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/reconcile"
)

// ReconciliationHandler serves confirmations, the reconciliation report and
// the task-completion cross-check.
type ReconciliationHandler struct {
	engine *reconcile.Engine
	log    zerolog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(engine *reconcile.Engine, log zerolog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{engine: engine, log: log}
}

// CreateConfirmation handles POST /api/confirmations
func (h *ReconciliationHandler) CreateConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		PeriodStart   string `json:"period_start"`
		PeriodEnd     string `json:"period_end"`
		ReportedValue string `json:"reported_value"`
		ReceivedDate  string `json:"received_date"`
		Note          string `json:"note"`
		CreatedBy     string `json:"created_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := reconcile.ConfirmationInput{Note: req.Note, CreatedBy: req.CreatedBy}
	var err error
	if in.PeriodStart, err = civil.ParseDate(req.PeriodStart); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid period_start: expected YYYY-MM-DD")
		return
	}
	if in.PeriodEnd, err = civil.ParseDate(req.PeriodEnd); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid period_end: expected YYYY-MM-DD")
		return
	}
	if in.ReportedValue, err = decimal.NewFromString(req.ReportedValue); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid reported_value: expected a decimal number")
		return
	}
	if req.ReceivedDate != "" {
		if in.ReceivedDate, err = civil.ParseDate(req.ReceivedDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid received_date: expected YYYY-MM-DD")
			return
		}
	}

	confirmation, err := h.engine.CreateConfirmation(ctx, in)
	if err != nil {
		var verr *reconcile.ValidationError
		if errors.As(err, &verr) {
			middleware.WriteError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.log.Error().Err(err).Msg("Failed to create confirmation")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create confirmation")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, confirmation)
}

// ListConfirmations handles GET /api/confirmations?start=&end=
func (h *ReconciliationHandler) ListConfirmations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, end, ok := h.periodParams(w, r)
	if !ok {
		return
	}

	confirmations, err := h.engine.ListConfirmations(ctx, start, end)
	if err != nil {
		if errors.Is(err, bigquery.ErrNotInitialized) {
			confirmations = nil
		} else {
			h.log.Error().Err(err).Msg("Failed to list confirmations")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list confirmations")
			return
		}
	}

	if confirmations == nil {
		confirmations = []*reconcile.Confirmation{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"confirmations": confirmations,
		"count":         len(confirmations),
	})
}

// Report handles GET /api/reconciliation/report?start=&end=
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, end, ok := h.periodParams(w, r)
	if !ok {
		return
	}

	report, err := h.engine.BuildReport(ctx, start, end)
	if err != nil {
		var verr *reconcile.ValidationError
		if errors.As(err, &verr) {
			middleware.WriteError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.log.Error().Err(err).Msg("Failed to build reconciliation report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// TaskCheck handles POST /api/tasks/settlement-check. A value disagreeing
// with the recomputed net settlement yields a 409 carrying both sides.
func (h *ReconciliationHandler) TaskCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		SettlementDate string `json:"settlement_date"`
		BankCode       string `json:"bank_code"`
		Value          string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := civil.ParseDate(req.SettlementDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid settlement_date: expected YYYY-MM-DD")
		return
	}
	claimed, err := decimal.NewFromString(req.Value)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid value: expected a decimal number")
		return
	}

	err = h.engine.VerifyTaskSettlement(ctx, date, req.BankCode, claimed)
	if err == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
		return
	}

	var mismatch *reconcile.MismatchError
	var verr *reconcile.ValidationError
	switch {
	case errors.As(err, &mismatch):
		middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "settlement value mismatch",
			"mismatch": mismatch,
		})
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, verr.Reason)
	default:
		h.log.Error().Err(err).Msg("Failed to verify task settlement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to verify settlement")
	}
}

func (h *ReconciliationHandler) periodParams(w http.ResponseWriter, r *http.Request) (start, end civil.Date, ok bool) {
	startPtr, err := parseDateParam(r, "start")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return start, end, false
	}
	endPtr, err := parseDateParam(r, "end")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return start, end, false
	}
	if startPtr == nil || endPtr == nil {
		middleware.WriteError(w, http.StatusBadRequest, "start and end are required (YYYY-MM-DD)")
		return start, end, false
	}
	return *startPtr, *endPtr, true
}
