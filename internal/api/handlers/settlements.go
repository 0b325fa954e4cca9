package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// SettlementsHandler serves the grouped settlement view.
type SettlementsHandler struct {
	store *bigquery.Store
	log   zerolog.Logger
}

// NewSettlementsHandler creates a new settlements handler.
func NewSettlementsHandler(store *bigquery.Store, log zerolog.Logger) *SettlementsHandler {
	return &SettlementsHandler{store: store, log: log}
}

type settlementSliceJSON struct {
	TransactionDate string `json:"transaction_date,omitempty"`
	Movements       int64  `json:"movements"`
	Amount          string `json:"amount"`
	Fee             string `json:"fee"`
	AcquirerShare   string `json:"acquirer_share"`
	NetSettlement   string `json:"net_settlement"`
}

type settlementGroupJSON struct {
	SettlementDate string `json:"settlement_date"`
	BankCode       string `json:"bank_code"`
	BankName       string `json:"bank_name,omitempty"`

	Movements     int64  `json:"movements"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	AcquirerShare string `json:"acquirer_share"`
	NetSettlement string `json:"net_settlement"`

	Breakdown []settlementSliceJSON `json:"breakdown,omitempty"`
}

func toGroupJSON(g *bigquery.SettlementGroup, cfg settings.Config) settlementGroupJSON {
	out := settlementGroupJSON{
		SettlementDate: g.SettlementDate.String(),
		BankCode:       g.BankCode,
		BankName:       g.BankName,
		Movements:      g.Movements,
		Amount:         money(g.Amount, cfg),
		Fee:            money(g.Fee, cfg),
		AcquirerShare:  money(g.AcquirerShare, cfg),
		NetSettlement:  money(g.NetSettlement, cfg),
	}
	for _, s := range g.Breakdown {
		slice := settlementSliceJSON{
			Movements:     s.Movements,
			Amount:        money(s.Amount, cfg),
			Fee:           money(s.Fee, cfg),
			AcquirerShare: money(s.AcquirerShare, cfg),
			NetSettlement: money(s.NetSettlement, cfg),
		}
		if s.TransactionDate.Valid {
			slice.TransactionDate = s.TransactionDate.Date.String()
		}
		out.Breakdown = append(out.Breakdown, slice)
	}
	return out
}

// List handles GET /api/settlements. Pass breakdown=transaction_date to
// split each bucket by the underlying transaction date.
func (h *SettlementsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", bigquery.MaxGroupedPageSize)
	withBreakdown := r.URL.Query().Get("breakdown") == "transaction_date"

	cfg, err := h.store.LoadSettings(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	groups, err := h.store.GroupSettlements(ctx, cfg, filter, page, pageSize, withBreakdown)
	if err != nil && !errors.Is(err, bigquery.ErrNotInitialized) {
		h.log.Error().Err(err).Msg("Failed to group settlements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to group settlements")
		return
	}

	items := make([]settlementGroupJSON, 0, len(groups))
	for _, g := range groups {
		items = append(items, toGroupJSON(g, cfg))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"settlements": items,
		"count":       len(items),
		"page":        page,
	})
}
