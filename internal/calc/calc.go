// Package calc derives the financial values of a settlement transaction
// (amount, fee, acquirer share, net settlement) from a normalized record and
// an explicit settings snapshot.
//
// The fee tier logic exists in two forms that must stay numerically
// identical: the row evaluators in this file and the SQL expression builder
// in sqlexpr.go. Both are compiled from the same settings.FeeTier slice, so
// a rule change flows into per-row ingestion snapshots and set-wise
// aggregation alike.
package calc

import (
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/normalize"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// Derived bundles the four computed values of one transaction.
type Derived struct {
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	AcquirerShare decimal.Decimal
	NetSettlement decimal.Decimal
}

// Derive computes all derivatives in order: amount first, fee from amount,
// acquirer share as a sub-split of the fee, net as amount minus fee. Pure:
// identical (record, config) inputs always produce identical outputs.
func Derive(rec *normalize.Record, cfg settings.Config) Derived {
	amount := Amount(rec, cfg)
	fee := feeOf(amount, rec, cfg)
	share := shareOf(fee, rec, cfg)
	return Derived{
		Amount:        amount,
		Fee:           fee,
		AcquirerShare: share,
		NetSettlement: amount.Sub(fee),
	}
}

// Amount resolves the settling amount: the raw amount unless the message
// type is configured to settle at zero.
func Amount(rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	if cfg.IsZeroAmountType(rec.MessageType) {
		return decimal.Zero
	}
	return rec.AmountRaw
}

// Fee evaluates the ordered tier table against the record: first tier whose
// category range and validity window both match wins; otherwise the default
// rate applies to the amount.
func Fee(rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	return feeOf(Amount(rec, cfg), rec, cfg)
}

// AcquirerShare is fee times the terminal-class rate. It splits the fee and
// is never an additional deduction from the amount.
func AcquirerShare(rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	return shareOf(Fee(rec, cfg), rec, cfg)
}

// NetSettlement is amount minus fee.
func NetSettlement(rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	return Amount(rec, cfg).Sub(Fee(rec, cfg))
}

// Round applies the presentation rounding scale. Internal computation and
// accumulation stay at full precision; call this only at export or display
// boundaries.
func Round(v decimal.Decimal, cfg settings.Config) decimal.Decimal {
	return v.Round(cfg.RoundingScale)
}

func feeOf(amount decimal.Decimal, rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	category := CategoryNumber(rec.CategoryCode)
	effective := EffectiveDate(rec)

	for _, tier := range cfg.FeeTiers {
		if !tier.Matches(category, effective) {
			continue
		}
		if tier.Kind == settings.TierFixed {
			return tier.Value
		}
		return amount.Mul(tier.Value)
	}
	return amount.Mul(cfg.DefaultFeeRate)
}

func shareOf(fee decimal.Decimal, rec *normalize.Record, cfg settings.Config) decimal.Decimal {
	if cfg.IsPOSTerminal(rec.TerminalType) {
		return fee.Mul(cfg.POSAcquirerRate)
	}
	return fee.Mul(cfg.OtherAcquirerRate)
}

// EffectiveDate is the date a fee tier's validity window is evaluated
// against: the settlement date, falling back to the transaction date when
// the settlement date is unknown.
func EffectiveDate(rec *normalize.Record) civil.Date {
	if rec.SettlementDate.IsValid() {
		return rec.SettlementDate
	}
	if rec.TransactionTS != nil {
		return civil.DateOf(*rec.TransactionTS)
	}
	return civil.Date{}
}

// CategoryNumber parses a category code into its numeric form. Non-numeric
// or absent codes return nil and never match a tier's category range.
func CategoryNumber(code string) *int64 {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
