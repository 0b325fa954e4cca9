package ingest

import (
	"context"

	infra "github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// Store is an interface for the storage operations one ingestion run makes.
// *infra.Store is the production implementation; tests substitute a fake.
type Store interface {
	LoadSettings(ctx context.Context) (settings.Config, error)
	CreateImportBatch(ctx context.Context, row *infra.ImportBatchRow) error
	SetImportBatchGCSURI(ctx context.Context, importID, gcsURI string) error
	InsertTransactionsIgnoreDuplicates(ctx context.Context, rows []*infra.TransactionInsert) (int64, error)
	FinalizeImportBatch(ctx context.Context, row *infra.ImportBatchRow) error
}
