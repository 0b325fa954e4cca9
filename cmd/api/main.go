package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fauzanr/rtgs-settlement/internal/api/handlers"
	"github.com/fauzanr/rtgs-settlement/internal/api/middleware"
	infraBQ "github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/ingest"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
	"github.com/fauzanr/rtgs-settlement/internal/reconcile"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project id (or set GCP_PROJECT env)")
		dataset = flag.String("dataset", envOr("BQ_DATASET", "rtgs"), "BigQuery dataset (or set BQ_DATASET env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for audit copies of uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("GCP project is required (-project or GCP_PROJECT)")
	}
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - uploaded files will not be staged for audit")
	}

	ctx := context.Background()

	store, err := infraBQ.NewStore(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	pipeline := ingest.New(store, *bucket)
	reconEngine := reconcile.New(store)

	// Initialize handlers
	importsHandler := handlers.NewImportsHandler(pipeline, store, log)
	transactionsHandler := handlers.NewTransactionsHandler(store, log)
	settlementsHandler := handlers.NewSettlementsHandler(store, log)
	reconHandler := handlers.NewReconciliationHandler(reconEngine, log)
	settingsHandler := handlers.NewSettingsHandler(store, log)
	directoryHandler := handlers.NewDirectoryHandler(store, log)

	// Create router
	mux := http.NewServeMux()

	// Imports endpoints
	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			importsHandler.Upload(w, r)
		case http.MethodGet:
			importsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/purge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.Purge(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			importID := strings.TrimPrefix(r.URL.Path, "/api/imports/")
			if importID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Import ID is required")
				return
			}
			importsHandler.Delete(w, r, importID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Settlements endpoint (grouped view)
	mux.HandleFunc("/api/settlements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			settlementsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Reconciliation endpoints
	mux.HandleFunc("/api/confirmations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			reconHandler.CreateConfirmation(w, r)
		case http.MethodGet:
			reconHandler.ListConfirmations(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reconciliation/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reconHandler.Report(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/tasks/settlement-check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			reconHandler.TaskCheck(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Settings endpoints
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settingsHandler.Get(w, r)
		case http.MethodPut:
			settingsHandler.Put(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Directory endpoints
	mux.HandleFunc("/api/banks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			directoryHandler.Banks(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/merchants", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			directoryHandler.Merchants(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Imports run synchronously, so the write timeout must cover a full
	// 150k-row file rather than a typical read request.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
