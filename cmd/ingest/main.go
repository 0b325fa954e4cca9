package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/fauzanr/rtgs-settlement/internal/gcsstore"
	infraBQ "github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/ingest"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		project    = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project id (or set GCP_PROJECT env)")
		dataset    = flag.String("dataset", envOr("BQ_DATASET", "rtgs"), "BigQuery dataset (or set BQ_DATASET env)")
		bucket     = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for audit copies (or set GCS_BUCKET env)")
		source     = flag.String("file", "", "Source file: local path or gs:// URI")
		uploadedBy = flag.String("uploaded-by", "cli", "Operator recorded on the import batch")
	)
	flag.Parse()

	log := logger.New()

	if *project == "" {
		log.Fatal().Msg("GCP project is required (-project or GCP_PROJECT)")
	}
	if *source == "" {
		log.Fatal().Msg("Source file is required (-file)")
	}

	ctx := logger.WithContext(context.Background(), log)

	var (
		data     []byte
		filename string
		err      error
	)
	if strings.HasPrefix(*source, "gs://") {
		data, err = gcsstore.Fetch(ctx, *source)
		filename = gcsstore.FilenameFromURI(*source)
	} else {
		data, err = os.ReadFile(*source)
		filename = filepath.Base(*source)
	}
	if err != nil {
		log.Fatal().Err(err).Str("source", *source).Msg("Failed to read source file")
	}

	store, err := infraBQ.NewStore(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	summary, err := ingest.New(store, *bucket).IngestFile(ctx, filename, data, *uploadedBy)
	if err != nil {
		log.Fatal().Err(err).Str("filename", filename).Msg("Ingestion failed")
	}

	log.Info().
		Str("import_id", summary.ImportID).
		Int("total", summary.Total).
		Int("inserted", summary.Inserted).
		Int("skipped_duplicates", summary.SkippedDuplicates).
		Int("rejected", summary.Rejected).
		Int64("duration_ms", summary.DurationMS).
		Msg("Ingestion finished")

	if total, err := store.CountTransactions(ctx); err == nil {
		log.Info().Int64("stored_total", total).Msg("Transactions in store")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
