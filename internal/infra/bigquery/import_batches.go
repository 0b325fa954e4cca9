package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Import batch lifecycle states.
const (
	ImportStatusRunning   = "RUNNING"
	ImportStatusCompleted = "COMPLETED"
	ImportStatusFailed    = "FAILED"
)

// ImportBatchRow is the provenance record of one ingestion run. It is
// created with status RUNNING before any transaction is inserted, so every
// inserted row can carry its id, and finalized once with the counts.
type ImportBatchRow struct {
	ImportID   string `bigquery:"import_id"` // REQUIRED
	Filename   string `bigquery:"filename"`  // REQUIRED
	GCSURI     string `bigquery:"gcs_uri"`   // audit copy of the source file
	UploadedBy string `bigquery:"uploaded_by"`

	TotalRows         int64 `bigquery:"total_rows"`
	InsertedRows      int64 `bigquery:"inserted_rows"`
	SkippedDuplicates int64 `bigquery:"skipped_duplicates"`
	RejectedRows      int64 `bigquery:"rejected_rows"`

	DurationMS   int64  `bigquery:"duration_ms"`
	RejectSample string `bigquery:"reject_sample"` // JSON array, capped

	Status     string                 `bigquery:"status"`
	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`
}
