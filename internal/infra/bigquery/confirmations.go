package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// ConfirmationRow is one externally reported settlement total for a date
// range. The fee and acquirer sums are snapshotted at creation for audit
// display only; match status is never stored because it is recomputed
// against the live transaction set on every read.
type ConfirmationRow struct {
	ConfirmationID string `bigquery:"confirmation_id"` // REQUIRED

	PeriodStart civil.Date `bigquery:"period_start"` // REQUIRED
	PeriodEnd   civil.Date `bigquery:"period_end"`   // REQUIRED

	ReportedValue       *big.Rat `bigquery:"reported_value"`        // REQUIRED NUMERIC
	FeeSumSnapshot      *big.Rat `bigquery:"fee_sum_snapshot"`      // NUMERIC, audit only
	AcquirerSumSnapshot *big.Rat `bigquery:"acquirer_sum_snapshot"` // NUMERIC, audit only

	ReceivedDate civil.Date `bigquery:"received_date"`
	Note         string     `bigquery:"note"`
	CreatedBy    string     `bigquery:"created_by"`
	CreatedTS    time.Time  `bigquery:"created_ts"` // REQUIRED
}
