// Package bigquery is the storage layer of the settlement core. One file per
// table: the row struct next to its operations. All reads translate missing
// tables into ErrNotInitialized so callers can degrade instead of failing
// before setup has run.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

const (
	transactionsTable  = "transactions"
	importBatchesTable = "import_batches"
	confirmationsTable = "confirmations"
	settingsTable      = "calc_settings"
	merchantsTable     = "merchants"
	banksTable         = "banks"
)

// ErrNotInitialized signals that the underlying tables do not exist yet
// (setup has not run). Read endpoints render this as an empty result.
var ErrNotInitialized = errors.New("settlement tables are not initialized")

// Store wraps a shared BigQuery client scoped to one project and dataset.
// It is safe for concurrent use; all mutating operations are scoped to a
// single statement or script.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewStore creates a Store with its own BigQuery client.
func NewStore(ctx context.Context, project, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, project: project, dataset: dataset}, nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(client *bigquery.Client, project, dataset string) *Store {
	return &Store{client: client, project: project, dataset: dataset}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the backtick-quoted fully qualified table name.
func (s *Store) table(name string) string {
	return "`" + s.project + "." + s.dataset + "." + name + "`"
}

// runDML executes a DML statement and returns the affected-row count.
func (s *Store) runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running statement: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}

// translateNotFound maps the storage layer's "table not found" signal onto
// ErrNotInitialized and leaves every other error untouched.
func translateNotFound(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return ErrNotInitialized
	}
	return err
}
