package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/ingest"
)

// Uploads are bounded by the row cap, not bytes, but a hard byte ceiling
// keeps a malformed request from exhausting memory before parsing starts.
const maxUploadBytes = 256 << 20

// ImportsHandler handles bulk file ingestion and import provenance.
type ImportsHandler struct {
	pipeline *ingest.Pipeline
	store    *bigquery.Store
	log      zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(pipeline *ingest.Pipeline, store *bigquery.Store, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{pipeline: pipeline, store: store, log: log}
}

// Upload handles POST /api/imports. The whole file is processed
// synchronously; the response is the ingestion summary.
func (h *ImportsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A file part named 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Unable to read uploaded file")
		return
	}

	uploadedBy := r.FormValue("uploaded_by")
	if uploadedBy == "" {
		uploadedBy = "api"
	}

	summary, err := h.pipeline.IngestFile(ctx, filepath.Base(header.Filename), data, uploadedBy)
	if err != nil {
		var verr *ingest.ValidationError
		var capErr *ingest.RowCapError
		switch {
		case errors.As(err, &verr):
			middleware.WriteError(w, http.StatusBadRequest, verr.Reason)
		case errors.As(err, &capErr):
			middleware.WriteError(w, http.StatusBadRequest, capErr.Error())
		case errors.Is(err, bigquery.ErrNotInitialized):
			middleware.WriteError(w, http.StatusServiceUnavailable, "Storage is not initialized; run the migrate command first")
		default:
			h.log.Error().Err(err).Str("filename", header.Filename).Msg("Import failed")
			middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// List handles GET /api/imports
func (h *ImportsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batches, err := h.store.ListImportBatches(ctx, parseIntParam(r, "limit", 0))
	if err != nil {
		if errors.Is(err, bigquery.ErrNotInitialized) {
			batches = nil
		} else {
			h.log.Error().Err(err).Msg("Failed to list import batches")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list imports")
			return
		}
	}

	if batches == nil {
		batches = []*bigquery.ImportBatchRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": batches,
		"count":   len(batches),
	})
}

// Delete handles DELETE /api/imports/{id}: the batch and every transaction
// it inserted disappear together.
func (h *ImportsHandler) Delete(w http.ResponseWriter, r *http.Request, importID string) {
	ctx := r.Context()

	if err := h.store.DeleteImportBatch(ctx, importID); err != nil {
		h.log.Error().Err(err).Str("import_id", importID).Msg("Failed to delete import batch")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete import")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"import_id": importID,
		"status":    "deleted",
	})
}

// Purge handles POST /api/imports/purge: every transaction and batch is
// removed. Confirmations and settings survive.
func (h *ImportsHandler) Purge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.PurgeAll(ctx); err != nil {
		h.log.Error().Err(err).Msg("Failed to purge transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to purge")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
