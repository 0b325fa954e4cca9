package reconcile

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// ReportLine is one aggregate line of the reconciliation report, rounded at
// the presentation boundary.
type ReportLine struct {
	Key           string          `json:"key,omitempty"`
	Label         string          `json:"label,omitempty"`
	Movements     int64           `json:"movements"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	AcquirerShare decimal.Decimal `json:"acquirer_share"`
	NetSettlement decimal.Decimal `json:"net_settlement"`
}

// Report is the full reconciliation view of one settlement-date period:
// overall sums, breakdowns per bank, day and region, and every overlapping
// confirmation with its live match status.
type Report struct {
	PeriodStart civil.Date `json:"period_start"`
	PeriodEnd   civil.Date `json:"period_end"`

	Totals   ReportLine   `json:"totals"`
	ByBank   []ReportLine `json:"by_bank"`
	ByDay    []ReportLine `json:"by_day"`
	ByRegion []ReportLine `json:"by_region"`

	Confirmations []*Confirmation `json:"confirmations"`
}

// BuildReport assembles the reconciliation report for a period. Every figure
// is recomputed live under the current rule set; nothing is read from the
// stored per-row snapshots.
func (e *Engine) BuildReport(ctx context.Context, start, end civil.Date) (*Report, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, &ValidationError{Reason: "period_start and period_end are required"}
	}
	if end.Before(start) {
		return nil, &ValidationError{Reason: "period_end must not precede period_start"}
	}

	cfg, err := e.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: loading settings: %w", err)
	}

	sums, err := e.store.SumPeriod(ctx, cfg, start, end)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: %w", err)
	}
	byBank, err := e.store.SumPeriodByBank(ctx, cfg, start, end)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: %w", err)
	}
	byDay, err := e.store.SumPeriodByDay(ctx, cfg, start, end)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: %w", err)
	}
	byRegion, err := e.store.SumPeriodByRegion(ctx, cfg, start, end)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: %w", err)
	}
	confirmations, err := e.ListConfirmations(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("BuildReport: %w", err)
	}

	report := &Report{
		PeriodStart: start,
		PeriodEnd:   end,
		Totals: ReportLine{
			Movements:     sums.Movements,
			Amount:        calc.Round(sums.Amount, cfg),
			Fee:           calc.Round(sums.Fee, cfg),
			AcquirerShare: calc.Round(sums.AcquirerShare, cfg),
			NetSettlement: calc.Round(sums.NetSettlement, cfg),
		},
		ByBank:        lines(byBank, cfg),
		ByDay:         lines(byDay, cfg),
		ByRegion:      lines(byRegion, cfg),
		Confirmations: confirmations,
	}
	return report, nil
}

func lines(buckets []*bigquery.ReconBucket, cfg settings.Config) []ReportLine {
	out := make([]ReportLine, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, ReportLine{
			Key:           b.Key,
			Label:         b.Label,
			Movements:     b.Movements,
			Amount:        calc.Round(b.Amount, cfg),
			Fee:           calc.Round(b.Fee, cfg),
			AcquirerShare: calc.Round(b.AcquirerShare, cfg),
			NetSettlement: calc.Round(b.NetSettlement, cfg),
		})
	}
	return out
}
