package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteImportBatch removes one import batch and every transaction it
// inserted. Child and parent deletes run inside a single transaction script
// so a failure cannot leave orphaned transaction rows behind.
func (s *Store) DeleteImportBatch(ctx context.Context, importID string) error {
	q := s.client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		DELETE FROM %s WHERE import_id = @import_id;
		DELETE FROM %s WHERE import_id = @import_id;

		COMMIT TRANSACTION;
	`, s.table(transactionsTable), s.table(importBatchesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_id", Value: importID},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteImportBatch: %w", err)
	}
	return nil
}

// PurgeAll deletes every transaction and import batch in one transaction.
// Confirmations and settings survive a purge.
func (s *Store) PurgeAll(ctx context.Context) error {
	q := s.client.Query(fmt.Sprintf(`
		BEGIN TRANSACTION;

		DELETE FROM %s WHERE TRUE;
		DELETE FROM %s WHERE TRUE;

		COMMIT TRANSACTION;
	`, s.table(transactionsTable), s.table(importBatchesTable)))

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("PurgeAll: %w", err)
	}
	return nil
}
