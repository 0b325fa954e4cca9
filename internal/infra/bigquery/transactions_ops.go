package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// InsertTransactionsIgnoreDuplicates inserts one batch of rows with
// insert-ignore semantics keyed on content_hash: a source row whose hash is
// already stored affects zero rows. Returns the number of rows actually
// inserted; the caller derives skipped duplicates as len(rows) - inserted.
//
// The MERGE also serializes concurrent duplicate inserts: the losing side
// simply matches an existing row and inserts nothing, so re-submitting a
// file is always safe.
func (s *Store) InsertTransactionsIgnoreDuplicates(ctx context.Context, rows []*TransactionInsert) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	q := s.client.Query(fmt.Sprintf(`
		MERGE %s T
		USING UNNEST(@rows) S
		ON T.content_hash = S.ContentHash
		WHEN NOT MATCHED THEN
		  INSERT (
			transaction_id, import_id, reference_no, issuer_code, acquirer_code,
			message_type, transaction_ts, settlement_date, card_masked, currency,
			amount_raw, amount, fee_raw, fee, acquirer_share, net_settlement,
			merchant_code, terminal_type, category_code, content_hash, created_ts
		  )
		  VALUES (
			S.TransactionID, S.ImportID, S.ReferenceNo, S.IssuerCode, S.AcquirerCode,
			S.MessageType, S.TransactionTS, S.SettlementDate, S.CardMasked, S.Currency,
			S.AmountRaw, S.Amount, S.FeeRaw, S.Fee, S.AcquirerShare, S.NetSettlement,
			S.MerchantCode, S.TerminalType, S.CategoryCode, S.ContentHash, CURRENT_TIMESTAMP()
		  )
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	inserted, err := s.runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("InsertTransactionsIgnoreDuplicates: %w", err)
	}
	return inserted, nil
}

// CountTransactions returns the total number of stored transactions.
func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	q := s.client.Query(fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s`, s.table(transactionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, translateNotFound(fmt.Errorf("CountTransactions: %w", err))
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountTransactions: reading count: %w", err)
	}
	return row.N, nil
}
