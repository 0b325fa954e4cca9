package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/export"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// TransactionsHandler serves the flat transaction list and the CSV export.
type TransactionsHandler struct {
	store *bigquery.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *bigquery.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// transactionJSON is the wire shape of one flat-list row. Monetary values are
// rendered as rounded decimal strings.
type transactionJSON struct {
	TransactionID string `json:"transaction_id"`
	ImportID      string `json:"import_id"`
	ReferenceNo   string `json:"reference_no"`
	IssuerCode    string `json:"issuer_code"`
	AcquirerCode  string `json:"acquirer_code"`
	MessageType   string `json:"message_type"`

	TransactionTS  string `json:"transaction_ts,omitempty"`
	SettlementDate string `json:"settlement_date,omitempty"`

	CardMasked string `json:"card_masked"`
	Currency   string `json:"currency"`

	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	AcquirerShare string `json:"acquirer_share"`
	NetSettlement string `json:"net_settlement"`

	MerchantCode string `json:"merchant_code"`
	MerchantName string `json:"merchant_name,omitempty"`
	MerchantCity string `json:"merchant_city,omitempty"`
	BankName     string `json:"bank_name,omitempty"`

	TerminalType   string `json:"terminal_type"`
	CategoryCode   string `json:"category_code"`
	SourceFilename string `json:"source_filename,omitempty"`
}

func toTransactionJSON(row *bigquery.TransactionView, cfg settings.Config) transactionJSON {
	out := transactionJSON{
		TransactionID:  row.TransactionID,
		ImportID:       row.ImportID,
		ReferenceNo:    row.ReferenceNo,
		IssuerCode:     row.IssuerCode,
		AcquirerCode:   row.AcquirerCode,
		MessageType:    row.MessageType,
		CardMasked:     row.CardMasked,
		Currency:       row.Currency,
		Amount:         money(row.Amount, cfg),
		Fee:            money(row.Fee, cfg),
		AcquirerShare:  money(row.AcquirerShare, cfg),
		NetSettlement:  money(row.NetSettlement, cfg),
		MerchantCode:   row.MerchantCode,
		MerchantName:   row.MerchantName,
		MerchantCity:   row.MerchantCity,
		BankName:       row.BankName,
		TerminalType:   row.TerminalType,
		CategoryCode:   row.CategoryCode,
		SourceFilename: row.SourceFilename,
	}
	if row.TransactionTS.Valid {
		out.TransactionTS = row.TransactionTS.Timestamp.UTC().Format(time.RFC3339)
	}
	if row.SettlementDate.Valid {
		out.SettlementDate = row.SettlementDate.Date.String()
	}
	return out
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", bigquery.MaxFlatPageSize)

	cfg, err := h.store.LoadSettings(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	rows, err := h.store.ListTransactions(ctx, cfg, filter, page, pageSize)
	if err != nil && !errors.Is(err, bigquery.ErrNotInitialized) {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	items := make([]transactionJSON, 0, len(rows))
	for _, row := range rows {
		items = append(items, toTransactionJSON(row, cfg))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": items,
		"count":        len(items),
		"page":         page,
	})
}

// Export handles GET /api/transactions/export, streaming the filtered set
// as a CSV download.
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.store.LoadSettings(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	rows, err := h.store.ExportTransactions(ctx, cfg, filter)
	if err != nil && !errors.Is(err, bigquery.ErrNotInitialized) {
		h.log.Error().Err(err).Msg("Failed to export transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	if err := export.WriteTransactions(w, rows, cfg); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}
