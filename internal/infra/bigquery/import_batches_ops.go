package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// CreateImportBatch inserts the provenance row for a starting ingestion run.
func (s *Store) CreateImportBatch(ctx context.Context, row *ImportBatchRow) error {
	q := s.client.Query(fmt.Sprintf(`
		INSERT %s (import_id, filename, gcs_uri, uploaded_by, status, started_ts)
		VALUES (@import_id, @filename, @gcs_uri, @uploaded_by, @status, @started_ts)
	`, s.table(importBatchesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_id", Value: row.ImportID},
		{Name: "filename", Value: row.Filename},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "uploaded_by", Value: row.UploadedBy},
		{Name: "status", Value: ImportStatusRunning},
		{Name: "started_ts", Value: row.StartedTS},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("CreateImportBatch: %w", err)
	}
	return nil
}

// SetImportBatchGCSURI records the audit-copy location once staging
// finished. Staging is best effort, so this runs separately from creation.
func (s *Store) SetImportBatchGCSURI(ctx context.Context, importID, gcsURI string) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s SET gcs_uri = @gcs_uri WHERE import_id = @import_id
	`, s.table(importBatchesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "gcs_uri", Value: gcsURI},
		{Name: "import_id", Value: importID},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("SetImportBatchGCSURI: %w", err)
	}
	return nil
}

// FinalizeImportBatch writes the outcome of an ingestion run: counts,
// duration, the capped reject sample and the terminal status.
func (s *Store) FinalizeImportBatch(ctx context.Context, row *ImportBatchRow) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET total_rows = @total_rows,
		    inserted_rows = @inserted_rows,
		    skipped_duplicates = @skipped_duplicates,
		    rejected_rows = @rejected_rows,
		    duration_ms = @duration_ms,
		    reject_sample = @reject_sample,
		    status = @status,
		    finished_ts = @finished_ts
		WHERE import_id = @import_id
	`, s.table(importBatchesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "total_rows", Value: row.TotalRows},
		{Name: "inserted_rows", Value: row.InsertedRows},
		{Name: "skipped_duplicates", Value: row.SkippedDuplicates},
		{Name: "rejected_rows", Value: row.RejectedRows},
		{Name: "duration_ms", Value: row.DurationMS},
		{Name: "reject_sample", Value: row.RejectSample},
		{Name: "status", Value: row.Status},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "import_id", Value: row.ImportID},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("FinalizeImportBatch: %w", err)
	}
	return nil
}

// ListImportBatches returns batches in reverse start order.
func (s *Store) ListImportBatches(ctx context.Context, limit int) ([]*ImportBatchRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			import_id, filename, gcs_uri, uploaded_by,
			total_rows, inserted_rows, skipped_duplicates, rejected_rows,
			duration_ms, reject_sample, status, started_ts, finished_ts
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, s.table(importBatchesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, translateNotFound(fmt.Errorf("ListImportBatches: %w", err))
	}

	var batches []*ImportBatchRow
	for {
		var row ImportBatchRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListImportBatches: iterating: %w", err)
		}
		batches = append(batches, &row)
	}
	return batches, nil
}
