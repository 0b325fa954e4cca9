package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// InsertConfirmation stores one confirmation record.
func (s *Store) InsertConfirmation(ctx context.Context, row *ConfirmationRow) error {
	q := s.client.Query(fmt.Sprintf(`
		INSERT %s (
			confirmation_id, period_start, period_end, reported_value,
			fee_sum_snapshot, acquirer_sum_snapshot, received_date, note,
			created_by, created_ts
		)
		VALUES (
			@confirmation_id, @period_start, @period_end, @reported_value,
			@fee_sum_snapshot, @acquirer_sum_snapshot, @received_date, @note,
			@created_by, CURRENT_TIMESTAMP()
		)
	`, s.table(confirmationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "confirmation_id", Value: row.ConfirmationID},
		{Name: "period_start", Value: row.PeriodStart},
		{Name: "period_end", Value: row.PeriodEnd},
		{Name: "reported_value", Value: row.ReportedValue},
		{Name: "fee_sum_snapshot", Value: row.FeeSumSnapshot},
		{Name: "acquirer_sum_snapshot", Value: row.AcquirerSumSnapshot},
		{Name: "received_date", Value: row.ReceivedDate},
		{Name: "note", Value: row.Note},
		{Name: "created_by", Value: row.CreatedBy},
	}

	if _, err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertConfirmation: %w", err)
	}
	return nil
}

// ListConfirmations returns confirmations whose period overlaps the given
// range, newest first.
func (s *Store) ListConfirmations(ctx context.Context, start, end civil.Date) ([]*ConfirmationRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			confirmation_id, period_start, period_end, reported_value,
			fee_sum_snapshot, acquirer_sum_snapshot, received_date, note,
			created_by, created_ts
		FROM %s
		WHERE period_start <= @range_end AND period_end >= @range_start
		ORDER BY created_ts DESC
	`, s.table(confirmationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "range_start", Value: start},
		{Name: "range_end", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, translateNotFound(fmt.Errorf("ListConfirmations: %w", err))
	}

	var rows []*ConfirmationRow
	for {
		var row ConfirmationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListConfirmations: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
