package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	infra "github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// fakeStore keeps inserted content hashes across calls so a re-ingested file
// hits the same insert-ignore semantics as the MERGE statement.
type fakeStore struct {
	cfg       settings.Config
	hashes    map[string]bool
	finalized []infra.ImportBatchRow
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{cfg: settings.Default(), hashes: make(map[string]bool)}
}

func (f *fakeStore) LoadSettings(ctx context.Context) (settings.Config, error) {
	return f.cfg, nil
}

func (f *fakeStore) CreateImportBatch(ctx context.Context, row *infra.ImportBatchRow) error {
	return nil
}

func (f *fakeStore) SetImportBatchGCSURI(ctx context.Context, importID, gcsURI string) error {
	return nil
}

func (f *fakeStore) InsertTransactionsIgnoreDuplicates(ctx context.Context, rows []*infra.TransactionInsert) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	var n int64
	for _, row := range rows {
		if !f.hashes[row.ContentHash] {
			f.hashes[row.ContentHash] = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) FinalizeImportBatch(ctx context.Context, row *infra.ImportBatchRow) error {
	f.finalized = append(f.finalized, *row)
	return nil
}

func testCtx() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

func fileOf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

const exportHeader = "reference_no,acquirer_code,message_type,transaction_datetime,settlement_date,currency,amount,fee,merchant_code,terminal_type,category_code"

func TestIngestFileDeduplicatesWithinFile(t *testing.T) {
	store := newFakeStore()
	data := fileOf(
		exportHeader,
		"REF00001,BANKB,0200,2026-05-06 10:00:00,2026-05-07,IDR,1000.50,2.50,M001,POS,5411",
		"REF00001,BANKB,0200,2026-05-06 10:00:00,2026-05-07,IDR,1000.50,2.50,M001,POS,5411",
		"REF00002,BANKB,0200,2026-05-06 11:00:00,2026-05-07,IDR,250.00,0.75,M002,ATM,6011",
	)

	summary, err := New(store, "").IngestFile(testCtx(), "export.csv", data, "tester")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	if summary.Total != 3 {
		t.Errorf("Total = %d, want 3", summary.Total)
	}
	if summary.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", summary.Inserted)
	}
	if summary.SkippedDuplicates != 1 {
		t.Errorf("SkippedDuplicates = %d, want 1", summary.SkippedDuplicates)
	}
	if summary.Rejected != 0 {
		t.Errorf("Rejected = %d, want 0", summary.Rejected)
	}

	if len(store.finalized) != 1 {
		t.Fatalf("finalized %d batches, want 1", len(store.finalized))
	}
	batch := store.finalized[0]
	if batch.Status != infra.ImportStatusCompleted {
		t.Errorf("batch status = %q, want COMPLETED", batch.Status)
	}
	if batch.TotalRows != 3 || batch.InsertedRows != 2 || batch.SkippedDuplicates != 1 || batch.RejectedRows != 0 {
		t.Errorf("batch counts = %d/%d/%d/%d, want 3/2/1/0",
			batch.TotalRows, batch.InsertedRows, batch.SkippedDuplicates, batch.RejectedRows)
	}
}

func TestIngestFileReIngestInsertsNothing(t *testing.T) {
	store := newFakeStore()
	data := fileOf(
		exportHeader,
		"REF00001,BANKB,0200,2026-05-06 10:00:00,2026-05-07,IDR,1000.50,2.50,M001,POS,5411",
		"REF00002,BANKB,0200,2026-05-06 11:00:00,2026-05-07,IDR,250.00,0.75,M002,ATM,6011",
	)
	pipeline := New(store, "")

	first, err := pipeline.IngestFile(testCtx(), "export.csv", data, "tester")
	if err != nil {
		t.Fatalf("first IngestFile: %v", err)
	}
	if first.Inserted != 2 || first.SkippedDuplicates != 0 {
		t.Fatalf("first run inserted/skipped = %d/%d, want 2/0", first.Inserted, first.SkippedDuplicates)
	}

	second, err := pipeline.IngestFile(testCtx(), "export.csv", data, "tester")
	if err != nil {
		t.Fatalf("second IngestFile: %v", err)
	}
	if second.Inserted != 0 {
		t.Errorf("second run Inserted = %d, want 0", second.Inserted)
	}
	if second.SkippedDuplicates != 2 {
		t.Errorf("second run SkippedDuplicates = %d, want 2", second.SkippedDuplicates)
	}
	if second.ImportID == first.ImportID {
		t.Error("each run must get its own import id")
	}
}

func TestIngestFileCountsRejects(t *testing.T) {
	store := newFakeStore()
	data := fileOf(
		exportHeader,
		"REF00001,BANKB,0200,2026-05-06 10:00:00,2026-05-07,IDR,1000.50,2.50,M001,POS,5411",
		",BANKB,0200,2026-05-06 10:05:00,2026-05-07,IDR,10.00,0.10,M001,POS,5411",
	)

	summary, err := New(store, "").IngestFile(testCtx(), "export.csv", data, "tester")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	if summary.Inserted != 1 || summary.Rejected != 1 {
		t.Errorf("inserted/rejected = %d/%d, want 1/1", summary.Inserted, summary.Rejected)
	}
	if len(summary.RejectSample) != 1 {
		t.Fatalf("RejectSample has %d entries, want 1", len(summary.RejectSample))
	}
	if summary.RejectSample[0].Row != 2 {
		t.Errorf("reject row = %d, want 2", summary.RejectSample[0].Row)
	}
}

func TestIngestFileStorageFailureFinalizesFailed(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("quota exceeded")
	data := fileOf(
		exportHeader,
		"REF00001,BANKB,0200,2026-05-06 10:00:00,2026-05-07,IDR,1000.50,2.50,M001,POS,5411",
	)

	_, err := New(store, "").IngestFile(testCtx(), "export.csv", data, "tester")
	if err == nil {
		t.Fatal("IngestFile must return the storage error")
	}

	if len(store.finalized) != 1 {
		t.Fatalf("finalized %d batches, want 1", len(store.finalized))
	}
	if store.finalized[0].Status != infra.ImportStatusFailed {
		t.Errorf("batch status = %q, want FAILED", store.finalized[0].Status)
	}
}
