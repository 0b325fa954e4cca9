// Package ingest drives one bulk RTGS export file through normalization,
// calculation and batched idempotent insertion, recording provenance and
// per-row rejection diagnostics on an import batch.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/gcsstore"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
	"github.com/fauzanr/rtgs-settlement/internal/normalize"
)

// Summary is the outcome of one ingestion run.
type Summary struct {
	ImportID          string             `json:"import_id"`
	Total             int                `json:"total"`
	Inserted          int                `json:"inserted"`
	SkippedDuplicates int                `json:"skipped_duplicates"`
	Rejected          int                `json:"rejected"`
	RejectSample      []normalize.Reject `json:"reject_sample"`
	DurationMS        int64              `json:"duration_ms"`
}

// Pipeline ingests files into the store. A zero bucket disables the GCS
// audit copy. The pipeline is stateless between runs; each run loads its own
// settings snapshot.
type Pipeline struct {
	store  Store
	bucket string
}

// New creates a Pipeline.
func New(store Store, bucket string) *Pipeline {
	return &Pipeline{store: store, bucket: bucket}
}

// IngestFile processes one bulk export file synchronously:
//
//  1. Parse (delimiter sniffing, BOM, row cap). Whole-file rejection only
//     happens here, before anything is written.
//  2. Create the import batch provenance row to obtain the id tagging every
//     inserted transaction; stage the raw file to GCS best effort.
//  3. Normalize, calculate and insert data rows in fixed-size batches with
//     insert-ignore semantics on the content hash. Rejected rows are counted
//     and sampled, never inserted, and never abort their batch.
//  4. Finalize the batch with counts, duration and the reject sample.
//
// A storage failure mid-file finalizes the batch as FAILED and returns the
// error without rolling back earlier committed batches; the hash-based
// idempotence makes a full re-submission safe.
func (p *Pipeline) IngestFile(ctx context.Context, filename string, data []byte, uploadedBy string) (*Summary, error) {
	started := time.Now()

	header, rows, err := ParseFile(data)
	if err != nil {
		return nil, err
	}

	cfg, err := p.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("IngestFile: loading settings: %w", err)
	}

	importID := uuid.NewString()
	log := logger.WithImport(logger.FromContext(ctx), importID)

	batch := &bigquery.ImportBatchRow{
		ImportID:   importID,
		Filename:   filename,
		UploadedBy: uploadedBy,
		StartedTS:  started,
	}
	if err := p.store.CreateImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("IngestFile: creating import batch: %w", err)
	}

	p.stageAuditCopy(ctx, log, importID, filename, data)

	cleaned := normalize.CleanHeader(header)

	var (
		inserted int64
		skipped  int64
		rejected int
		rejects  []normalize.Reject
		seen     = make(map[string]bool, len(rows))
		pending  []*bigquery.TransactionInsert
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := p.store.InsertTransactionsIgnoreDuplicates(ctx, pending)
		if err != nil {
			return err
		}
		inserted += n
		skipped += int64(len(pending)) - n
		pending = pending[:0]
		return nil
	}

	for i, fields := range rows {
		rowNum := i + 1

		rec, reject := normalize.Normalize(cleaned, fields, rowNum)
		if reject != nil {
			rejected++
			if len(rejects) < RejectSampleSize {
				rejects = append(rejects, *reject)
			}
			continue
		}

		// Duplicates within the same file never reach the store.
		if seen[rec.ContentHash] {
			skipped++
			continue
		}
		seen[rec.ContentHash] = true

		pending = append(pending, toInsert(importID, rec, calc.Derive(rec, cfg)))
		if len(pending) >= BatchSize {
			if err := flush(); err != nil {
				return p.failBatch(ctx, log, batch, started, len(rows), inserted, skipped, rejected, rejects, err)
			}
			log.Info().Int("rows_done", rowNum).Int64("inserted", inserted).Msg("batch committed")
		}
	}
	if err := flush(); err != nil {
		return p.failBatch(ctx, log, batch, started, len(rows), inserted, skipped, rejected, rejects, err)
	}

	batch.Status = bigquery.ImportStatusCompleted
	batch.TotalRows = int64(len(rows))
	batch.InsertedRows = inserted
	batch.SkippedDuplicates = skipped
	batch.RejectedRows = int64(rejected)
	batch.DurationMS = time.Since(started).Milliseconds()
	batch.RejectSample = encodeRejects(rejects)
	if err := p.store.FinalizeImportBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("IngestFile: finalizing import batch: %w", err)
	}

	log.Info().
		Int("total", len(rows)).
		Int64("inserted", inserted).
		Int64("skipped_duplicates", skipped).
		Int("rejected", rejected).
		Dur("duration", time.Since(started)).
		Msg("ingestion completed")

	return &Summary{
		ImportID:          importID,
		Total:             len(rows),
		Inserted:          int(inserted),
		SkippedDuplicates: int(skipped),
		Rejected:          rejected,
		RejectSample:      capSample(rejects, SummarySampleSize),
		DurationMS:        batch.DurationMS,
	}, nil
}

// stageAuditCopy uploads the raw file next to the batch row. Failures are
// logged and ignored: the audit copy must not block ingestion.
func (p *Pipeline) stageAuditCopy(ctx context.Context, log zerolog.Logger, importID, filename string, data []byte) {
	if p.bucket == "" {
		return
	}
	uri, err := gcsstore.StageBytes(ctx, p.bucket, gcsstore.ObjectName(filename, time.Now()), data)
	if err != nil {
		log.Warn().Err(err).Msg("staging audit copy failed")
		return
	}
	if err := p.store.SetImportBatchGCSURI(ctx, importID, uri); err != nil {
		log.Warn().Err(err).Msg("recording audit copy URI failed")
	}
}

func (p *Pipeline) failBatch(ctx context.Context, log zerolog.Logger, batch *bigquery.ImportBatchRow, started time.Time, total int, inserted, skipped int64, rejected int, rejects []normalize.Reject, cause error) (*Summary, error) {
	log.Error().Err(cause).Msg("ingestion aborted by storage failure")

	batch.Status = bigquery.ImportStatusFailed
	batch.TotalRows = int64(total)
	batch.InsertedRows = inserted
	batch.SkippedDuplicates = skipped
	batch.RejectedRows = int64(rejected)
	batch.DurationMS = time.Since(started).Milliseconds()
	batch.RejectSample = encodeRejects(rejects)
	if err := p.store.FinalizeImportBatch(ctx, batch); err != nil {
		log.Error().Err(err).Msg("finalizing failed batch also failed")
	}

	return nil, fmt.Errorf("IngestFile: storage failure after %d inserted rows: %w", inserted, cause)
}

func toInsert(importID string, rec *normalize.Record, d calc.Derived) *bigquery.TransactionInsert {
	row := &bigquery.TransactionInsert{
		TransactionID: uuid.NewString(),
		ImportID:      importID,
		ReferenceNo:   rec.ReferenceNo,
		IssuerCode:    rec.IssuerCode,
		AcquirerCode:  rec.AcquirerCode,
		MessageType:   rec.MessageType,
		TransactionTS: rec.TransactionTS,
		CardMasked:    rec.CardMasked,
		Currency:      rec.Currency,
		AmountRaw:     rec.AmountRaw.Rat(),
		Amount:        d.Amount.Rat(),
		FeeRaw:        rec.FeeRaw.Rat(),
		Fee:           d.Fee.Rat(),
		AcquirerShare: d.AcquirerShare.Rat(),
		NetSettlement: d.NetSettlement.Rat(),
		MerchantCode:  rec.MerchantCode,
		TerminalType:  rec.TerminalType,
		CategoryCode:  rec.CategoryCode,
		ContentHash:   rec.ContentHash,
	}
	if rec.SettlementDate.IsValid() {
		date := rec.SettlementDate
		row.SettlementDate = &date
	}
	return row
}

func encodeRejects(rejects []normalize.Reject) string {
	if len(rejects) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(rejects)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func capSample(rejects []normalize.Reject, n int) []normalize.Reject {
	if rejects == nil {
		return []normalize.Reject{}
	}
	if len(rejects) > n {
		return rejects[:n]
	}
	return rejects
}
