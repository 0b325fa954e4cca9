package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/logger"
)

// ValidationError is a bad reconciliation request. Handlers render it as 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// MismatchError reports a task-completion claim whose value disagrees with
// the recomputed net settlement beyond the tolerance. It carries both sides
// so the caller can display the discrepancy without a second query.
type MismatchError struct {
	SettlementDate civil.Date      `json:"settlement_date"`
	BankCode       string          `json:"bank_code"`
	BankName       string          `json:"bank_name,omitempty"`
	Claimed        decimal.Decimal `json:"claimed"`
	Expected       decimal.Decimal `json:"expected"`
	Difference     decimal.Decimal `json:"difference"`
	Movements      int64           `json:"movements"`
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("settlement mismatch for %s bank %s: claimed %s, expected %s (difference %s over %d movements)",
		e.SettlementDate, e.BankCode, e.Claimed, e.Expected, e.Difference, e.Movements)
}

// VerifyTaskSettlement cross-checks a task-completion claim: the claimed
// value must equal the net settlement recomputed live for that settlement
// date and acquiring bank, within the configured tolerance. A disagreement
// returns a *MismatchError; the task must not complete.
func (e *Engine) VerifyTaskSettlement(ctx context.Context, date civil.Date, bankCode string, claimed decimal.Decimal) error {
	if !date.IsValid() {
		return &ValidationError{Reason: "settlement_date is required"}
	}
	if bankCode == "" {
		return &ValidationError{Reason: "bank_code is required"}
	}

	cfg, err := e.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("VerifyTaskSettlement: loading settings: %w", err)
	}

	expected, movements, err := e.store.SumNetForDateBank(ctx, cfg, date, bankCode)
	if err != nil {
		return fmt.Errorf("VerifyTaskSettlement: %w", err)
	}

	diff := claimed.Sub(expected)
	if diff.Abs().LessThan(cfg.MatchTolerance) {
		log := logger.FromContext(ctx)
		log.Info().
			Str("settlement_date", date.String()).
			Str("bank_code", bankCode).
			Str("claimed", claimed.String()).
			Int64("movements", movements).
			Msg("task settlement verified")
		return nil
	}

	mismatch := &MismatchError{
		SettlementDate: date,
		BankCode:       bankCode,
		Claimed:        claimed,
		Expected:       expected,
		Difference:     diff,
		Movements:      movements,
	}
	// Best effort: a missing directory entry never hides the mismatch.
	if bank, err := e.store.LookupBank(ctx, bankCode); err == nil && bank != nil {
		mismatch.BankName = bank.DisplayName
	}
	return mismatch
}

// NUMERIC values come back with nine decimal digits of scale.
func ratDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 9)
}
