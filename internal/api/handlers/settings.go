package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// SettingsHandler serves the live calculation rule set. There is exactly one
// version; saving overwrites it and applies retroactively on every read.
type SettingsHandler struct {
	store *bigquery.Store
	log   zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store *bigquery.Store, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, log: log}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.LoadSettings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cfg)
}

// Put handles PUT /api/settings
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cfg settings.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updatedBy := cfg.UpdatedBy
	if updatedBy == "" {
		updatedBy = "api"
	}

	if err := cfg.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveSettings(ctx, cfg, updatedBy); err != nil {
		h.log.Error().Err(err).Msg("Failed to save settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	h.log.Info().Str("updated_by", updatedBy).Msg("Calculation settings updated")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
