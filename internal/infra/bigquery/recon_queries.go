package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// PeriodSums are live-recomputed aggregates over a settlement-date range.
type PeriodSums struct {
	Movements     int64
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	AcquirerShare decimal.Decimal
	NetSettlement decimal.Decimal
}

// ReconBucket is one row of a reconciliation breakdown (per bank, per day or
// per region, depending on the grouping key).
type ReconBucket struct {
	Key           string
	Label         string
	Movements     int64
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	AcquirerShare decimal.Decimal
	NetSettlement decimal.Decimal
}

type sumsRow struct {
	Movements     int64    `bigquery:"movements"`
	Amount        *big.Rat `bigquery:"amount"`
	Fee           *big.Rat `bigquery:"fee"`
	AcquirerShare *big.Rat `bigquery:"acquirer_share"`
	NetSettlement *big.Rat `bigquery:"net_settlement"`
}

type bucketRow struct {
	Key           bigquery.NullString `bigquery:"bucket_key"`
	Label         bigquery.NullString `bigquery:"bucket_label"`
	Movements     int64               `bigquery:"movements"`
	Amount        *big.Rat            `bigquery:"amount"`
	Fee           *big.Rat            `bigquery:"fee"`
	AcquirerShare *big.Rat            `bigquery:"acquirer_share"`
	NetSettlement *big.Rat            `bigquery:"net_settlement"`
}

// NUMERIC carries nine decimal digits of scale.
const numericScale = 9

func ratDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, numericScale)
}

// SumPeriod recomputes the aggregate sums for a settlement-date range under
// the given settings snapshot. Absent tables yield zero sums so dependent
// dashboards keep functioning before setup.
func (s *Store) SumPeriod(ctx context.Context, cfg settings.Config, start, end civil.Date) (PeriodSums, error) {
	exprs := calc.SQLExprs(cfg, "t")

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			COUNT(*) AS movements,
			SUM(%s) AS amount,
			SUM(%s) AS fee,
			SUM(%s) AS acquirer_share,
			SUM(%s) AS net_settlement
		FROM %s t
		WHERE t.settlement_date BETWEEN @period_start AND @period_end
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable)))
	q.Parameters = append(exprs.Params,
		bigquery.QueryParameter{Name: "period_start", Value: start},
		bigquery.QueryParameter{Name: "period_end", Value: end},
	)

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return PeriodSums{}, nil
		}
		return PeriodSums{}, fmt.Errorf("SumPeriod: %w", err)
	}

	var row sumsRow
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return PeriodSums{}, fmt.Errorf("SumPeriod: reading row: %w", err)
	}
	return PeriodSums{
		Movements:     row.Movements,
		Amount:        ratDecimal(row.Amount),
		Fee:           ratDecimal(row.Fee),
		AcquirerShare: ratDecimal(row.AcquirerShare),
		NetSettlement: ratDecimal(row.NetSettlement),
	}, nil
}

// SumNetForDateBank recomputes the expected net-settlement sum for one
// settlement date and bank, used by the task-completion cross-check.
func (s *Store) SumNetForDateBank(ctx context.Context, cfg settings.Config, date civil.Date, bankCode string) (decimal.Decimal, int64, error) {
	exprs := calc.SQLExprs(cfg, "t")

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			COUNT(*) AS movements,
			SUM(%s) AS amount,
			SUM(%s) AS fee,
			SUM(%s) AS acquirer_share,
			SUM(%s) AS net_settlement
		FROM %s t
		WHERE t.settlement_date = @settle_date
		  AND t.acquirer_code = @bank_code
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable)))
	q.Parameters = append(exprs.Params,
		bigquery.QueryParameter{Name: "settle_date", Value: date},
		bigquery.QueryParameter{Name: "bank_code", Value: bankCode},
	)

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return decimal.Zero, 0, nil
		}
		return decimal.Zero, 0, fmt.Errorf("SumNetForDateBank: %w", err)
	}

	var row sumsRow
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return decimal.Zero, 0, fmt.Errorf("SumNetForDateBank: reading row: %w", err)
	}
	return ratDecimal(row.NetSettlement), row.Movements, nil
}

// Grouping keys for reconciliation breakdowns.
const (
	bucketByBank   = "bank"
	bucketByDay    = "day"
	bucketByRegion = "region"
)

// SumPeriodByBank breaks the period down per acquiring bank.
func (s *Store) SumPeriodByBank(ctx context.Context, cfg settings.Config, start, end civil.Date) ([]*ReconBucket, error) {
	return s.sumPeriodBuckets(ctx, cfg, start, end, bucketByBank)
}

// SumPeriodByDay breaks the period down per settlement date.
func (s *Store) SumPeriodByDay(ctx context.Context, cfg settings.Config, start, end civil.Date) ([]*ReconBucket, error) {
	return s.sumPeriodBuckets(ctx, cfg, start, end, bucketByDay)
}

// SumPeriodByRegion breaks the period down per bank-directory region.
func (s *Store) SumPeriodByRegion(ctx context.Context, cfg settings.Config, start, end civil.Date) ([]*ReconBucket, error) {
	return s.sumPeriodBuckets(ctx, cfg, start, end, bucketByRegion)
}

func (s *Store) sumPeriodBuckets(ctx context.Context, cfg settings.Config, start, end civil.Date, by string) ([]*ReconBucket, error) {
	var key, label, join string
	switch by {
	case bucketByBank:
		key = "t.acquirer_code"
		label = "IFNULL(ANY_VALUE(b.display_name), '')"
		join = fmt.Sprintf("LEFT JOIN %s b ON b.bank_code = t.acquirer_code", s.table(banksTable))
	case bucketByDay:
		key = "CAST(t.settlement_date AS STRING)"
		label = "''"
	case bucketByRegion:
		key = "IFNULL(b.region, 'UNKNOWN')"
		label = "''"
		join = fmt.Sprintf("LEFT JOIN %s b ON b.bank_code = t.acquirer_code", s.table(banksTable))
	default:
		return nil, fmt.Errorf("sumPeriodBuckets: unknown grouping %q", by)
	}

	exprs := calc.SQLExprs(cfg, "t")
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			%s AS bucket_key,
			%s AS bucket_label,
			COUNT(*) AS movements,
			SUM(%s) AS amount,
			SUM(%s) AS fee,
			SUM(%s) AS acquirer_share,
			SUM(%s) AS net_settlement
		FROM %s t
		%s
		WHERE t.settlement_date BETWEEN @period_start AND @period_end
		GROUP BY bucket_key
		ORDER BY bucket_key
	`,
		key, label,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable), join))
	q.Parameters = append(exprs.Params,
		bigquery.QueryParameter{Name: "period_start", Value: start},
		bigquery.QueryParameter{Name: "period_end", Value: end},
	)

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return nil, nil
		}
		return nil, fmt.Errorf("sumPeriodBuckets(%s): %w", by, err)
	}

	var buckets []*ReconBucket
	for {
		var row bucketRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sumPeriodBuckets(%s): iterating: %w", by, err)
		}
		buckets = append(buckets, &ReconBucket{
			Key:           row.Key.StringVal,
			Label:         row.Label.StringVal,
			Movements:     row.Movements,
			Amount:        ratDecimal(row.Amount),
			Fee:           ratDecimal(row.Fee),
			AcquirerShare: ratDecimal(row.AcquirerShare),
			NetSettlement: ratDecimal(row.NetSettlement),
		})
	}
	return buckets, nil
}
