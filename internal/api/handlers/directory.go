package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
)

// DirectoryHandler serves the read-only merchant and bank directories used
// to decorate transaction and settlement views.
type DirectoryHandler struct {
	store *bigquery.Store
	log   zerolog.Logger
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(store *bigquery.Store, log zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{store: store, log: log}
}

// Banks handles GET /api/banks
func (h *DirectoryHandler) Banks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.store.ListBanks(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list banks")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list banks")
		return
	}
	if banks == nil {
		banks = []*bigquery.BankRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"banks": banks,
		"count": len(banks),
	})
}

// Merchants handles GET /api/merchants
func (h *DirectoryHandler) Merchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := h.store.ListMerchants(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list merchants")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list merchants")
		return
	}
	if merchants == nil {
		merchants = []*bigquery.MerchantRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchants": merchants,
		"count":     len(merchants),
	})
}
