// Package reconcile matches externally reported settlement totals against
// sums recomputed live from the transaction set, and assembles the period
// reconciliation report.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/logger"
)

// Engine reconciles confirmations and task claims against the store.
type Engine struct {
	store *bigquery.Store
}

// New creates an Engine.
func New(store *bigquery.Store) *Engine {
	return &Engine{store: store}
}

// ConfirmationInput is an externally reported settlement total for a period.
type ConfirmationInput struct {
	PeriodStart   civil.Date      `json:"period_start"`
	PeriodEnd     civil.Date      `json:"period_end"`
	ReportedValue decimal.Decimal `json:"reported_value"`
	ReceivedDate  civil.Date      `json:"received_date"`
	Note          string          `json:"note"`
	CreatedBy     string          `json:"created_by"`
}

// Confirmation is a stored confirmation with its live match status. Expected
// and Difference are recomputed from the current transaction set on every
// read; only the audit snapshots are stored.
type Confirmation struct {
	ConfirmationID string          `json:"confirmation_id"`
	PeriodStart    civil.Date      `json:"period_start"`
	PeriodEnd      civil.Date      `json:"period_end"`
	ReportedValue  decimal.Decimal `json:"reported_value"`
	ReceivedDate   *civil.Date     `json:"received_date,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedTS      time.Time       `json:"created_ts"`

	FeeSumSnapshot      decimal.Decimal `json:"fee_sum_snapshot"`
	AcquirerSumSnapshot decimal.Decimal `json:"acquirer_sum_snapshot"`

	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
	Matched    bool            `json:"matched"`
}

// CreateConfirmation validates and stores one reported total, snapshotting
// the recomputed fee and acquirer sums of its period for later audit. The
// returned confirmation carries the live match status.
func (e *Engine) CreateConfirmation(ctx context.Context, in ConfirmationInput) (*Confirmation, error) {
	if !in.PeriodStart.IsValid() || !in.PeriodEnd.IsValid() {
		return nil, &ValidationError{Reason: "period_start and period_end are required"}
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return nil, &ValidationError{Reason: "period_end must not precede period_start"}
	}

	cfg, err := e.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateConfirmation: loading settings: %w", err)
	}

	sums, err := e.store.SumPeriod(ctx, cfg, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("CreateConfirmation: %w", err)
	}

	row := &bigquery.ConfirmationRow{
		ConfirmationID:      uuid.NewString(),
		PeriodStart:         in.PeriodStart,
		PeriodEnd:           in.PeriodEnd,
		ReportedValue:       in.ReportedValue.Rat(),
		FeeSumSnapshot:      sums.Fee.Rat(),
		AcquirerSumSnapshot: sums.AcquirerShare.Rat(),
		ReceivedDate:        in.ReceivedDate,
		Note:                in.Note,
		CreatedBy:           in.CreatedBy,
	}
	if err := e.store.InsertConfirmation(ctx, row); err != nil {
		return nil, fmt.Errorf("CreateConfirmation: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("confirmation_id", row.ConfirmationID).
		Str("period_start", in.PeriodStart.String()).
		Str("period_end", in.PeriodEnd.String()).
		Str("reported_value", in.ReportedValue.String()).
		Msg("confirmation recorded")

	c := &Confirmation{
		ConfirmationID:      row.ConfirmationID,
		PeriodStart:         in.PeriodStart,
		PeriodEnd:           in.PeriodEnd,
		ReportedValue:       in.ReportedValue,
		Note:                in.Note,
		CreatedBy:           in.CreatedBy,
		CreatedTS:           time.Now().UTC(),
		FeeSumSnapshot:      sums.Fee,
		AcquirerSumSnapshot: sums.AcquirerShare,
	}
	if in.ReceivedDate.IsValid() {
		d := in.ReceivedDate
		c.ReceivedDate = &d
	}
	applyStatus(c, sums.AcquirerShare, cfg.MatchTolerance)
	return c, nil
}

// ListConfirmations returns confirmations overlapping the range, newest
// first, each with its match status recomputed against the live transaction
// set. Periods sharing the same date range share one recomputation.
func (e *Engine) ListConfirmations(ctx context.Context, start, end civil.Date) ([]*Confirmation, error) {
	cfg, err := e.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListConfirmations: loading settings: %w", err)
	}

	rows, err := e.store.ListConfirmations(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("ListConfirmations: %w", err)
	}

	type period struct{ start, end civil.Date }
	expected := make(map[period]decimal.Decimal)

	out := make([]*Confirmation, 0, len(rows))
	for _, row := range rows {
		key := period{row.PeriodStart, row.PeriodEnd}
		exp, ok := expected[key]
		if !ok {
			sums, err := e.store.SumPeriod(ctx, cfg, row.PeriodStart, row.PeriodEnd)
			if err != nil {
				return nil, fmt.Errorf("ListConfirmations: %w", err)
			}
			exp = sums.AcquirerShare
			expected[key] = exp
		}

		c := fromRow(row)
		applyStatus(c, exp, cfg.MatchTolerance)
		out = append(out, c)
	}
	return out, nil
}

func fromRow(row *bigquery.ConfirmationRow) *Confirmation {
	c := &Confirmation{
		ConfirmationID:      row.ConfirmationID,
		PeriodStart:         row.PeriodStart,
		PeriodEnd:           row.PeriodEnd,
		ReportedValue:       ratDecimal(row.ReportedValue),
		Note:                row.Note,
		CreatedBy:           row.CreatedBy,
		CreatedTS:           row.CreatedTS,
		FeeSumSnapshot:      ratDecimal(row.FeeSumSnapshot),
		AcquirerSumSnapshot: ratDecimal(row.AcquirerSumSnapshot),
	}
	if row.ReceivedDate.IsValid() {
		d := row.ReceivedDate
		c.ReceivedDate = &d
	}
	return c
}

// applyStatus sets the live match fields. A confirmation matches when the
// absolute difference between the reported value and the recomputed acquirer
// sum is strictly below the tolerance.
func applyStatus(c *Confirmation, expected, tolerance decimal.Decimal) {
	c.Expected = expected
	c.Difference = c.ReportedValue.Sub(expected)
	c.Matched = c.Difference.Abs().LessThan(tolerance)
}
