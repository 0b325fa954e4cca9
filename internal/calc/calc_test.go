package calc

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/normalize"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func record(amount, messageType, terminal, category string, settle civil.Date) *normalize.Record {
	return &normalize.Record{
		ReferenceNo:    "REF001",
		MessageType:    messageType,
		AmountRaw:      dec(amount),
		TerminalType:   terminal,
		CategoryCode:   category,
		SettlementDate: settle,
	}
}

func TestDeriveDeterministic(t *testing.T) {
	cfg := settings.Default()
	rec := record("1000", "0200", "POS", "5411", civil.Date{Year: 2026, Month: time.May, Day: 6})

	a := Derive(rec, cfg)
	b := Derive(rec, cfg)
	if !a.Amount.Equal(b.Amount) || !a.Fee.Equal(b.Fee) || !a.AcquirerShare.Equal(b.AcquirerShare) || !a.NetSettlement.Equal(b.NetSettlement) {
		t.Error("identical inputs must produce identical derivatives")
	}
}

func TestDeriveNetIsAmountMinusFee(t *testing.T) {
	cfg := settings.Default()
	cfg.FeeTiers = []settings.FeeTier{
		{Label: "retail", CategoryFrom: 5000, CategoryTo: 5999, Kind: settings.TierRate, Value: dec("0.01")},
	}

	for _, amount := range []string{"0", "1", "999.99", "1000000", "0.003"} {
		rec := record(amount, "0200", "POS", "5411", civil.Date{Year: 2026, Month: time.May, Day: 6})
		d := Derive(rec, cfg)
		if !d.NetSettlement.Equal(d.Amount.Sub(d.Fee)) {
			t.Errorf("amount %s: net %s != amount %s - fee %s", amount, d.NetSettlement, d.Amount, d.Fee)
		}
		if d.Fee.IsNegative() {
			t.Errorf("amount %s: fee %s is negative", amount, d.Fee)
		}
	}
}

func TestAmountZeroedForConfiguredMessageTypes(t *testing.T) {
	cfg := settings.Default()

	rec := record("500", "0420", "POS", "", civil.Date{})
	d := Derive(rec, cfg)
	if !d.Amount.IsZero() {
		t.Errorf("Amount = %s, want 0 for reversal message type", d.Amount)
	}
	if !d.Fee.IsZero() {
		t.Errorf("Fee = %s, want 0 when amount is zeroed under the default rate", d.Fee)
	}

	rec = record("500", "0200", "POS", "", civil.Date{})
	if d := Derive(rec, cfg); !d.Amount.Equal(dec("500")) {
		t.Errorf("Amount = %s, want 500 for a financial message", d.Amount)
	}
}

func TestFeeTierSelection(t *testing.T) {
	may := civil.Date{Year: 2026, Month: time.May, Day: 6}
	cfg := settings.Default()
	cfg.DefaultFeeRate = dec("0.0025")
	cfg.FeeTiers = []settings.FeeTier{
		{Label: "groceries", CategoryFrom: 5400, CategoryTo: 5499, Kind: settings.TierRate, Value: dec("0.01")},
		{Label: "groceries-wide", CategoryFrom: 5000, CategoryTo: 5999, Kind: settings.TierRate, Value: dec("0.02")},
		{Label: "flat", CategoryFrom: 6000, CategoryTo: 6999, Kind: settings.TierFixed, Value: dec("7.50")},
	}

	tests := []struct {
		name     string
		category string
		settle   civil.Date
		wantFee  string
	}{
		{"first matching tier wins", "5411", may, "10"},
		{"second tier catches the rest of the range", "5999", may, "20"},
		{"fixed tier ignores the amount", "6100", may, "7.5"},
		{"no tier matches, default rate", "4111", may, "2.5"},
		{"non-numeric category never matches a tier", "XX11", may, "2.5"},
		{"empty category never matches a tier", "", may, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record("1000", "0200", "POS", tt.category, tt.settle)
			if fee := Fee(rec, cfg); !fee.Equal(dec(tt.wantFee)) {
				t.Errorf("Fee = %s, want %s", fee, tt.wantFee)
			}
		})
	}
}

func TestFeeTierValidityWindow(t *testing.T) {
	cfg := settings.Default()
	cfg.FeeTiers = []settings.FeeTier{
		{
			Label:        "promo",
			CategoryFrom: 5000, CategoryTo: 5999,
			ValidFrom: civil.Date{Year: 2026, Month: time.June, Day: 1},
			ValidTo:   civil.Date{Year: 2026, Month: time.June, Day: 30},
			Kind:      settings.TierRate, Value: dec("0.001"),
		},
	}

	inWindow := record("1000", "0200", "POS", "5411", civil.Date{Year: 2026, Month: time.June, Day: 15})
	if fee := Fee(inWindow, cfg); !fee.Equal(dec("1")) {
		t.Errorf("fee inside validity window = %s, want 1", fee)
	}

	outside := record("1000", "0200", "POS", "5411", civil.Date{Year: 2026, Month: time.July, Day: 1})
	if fee := Fee(outside, cfg); !fee.Equal(dec("2.5")) {
		t.Errorf("fee outside validity window = %s, want default 2.5", fee)
	}

	// No settlement date: the transaction date is the effective date.
	ts := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	fallback := record("1000", "0200", "POS", "5411", civil.Date{})
	fallback.TransactionTS = &ts
	if fee := Fee(fallback, cfg); !fee.Equal(dec("1")) {
		t.Errorf("fee with transaction-date fallback = %s, want 1", fee)
	}

	// No date at all: a windowed tier cannot match.
	undated := record("1000", "0200", "POS", "5411", civil.Date{})
	if fee := Fee(undated, cfg); !fee.Equal(dec("2.5")) {
		t.Errorf("fee with no effective date = %s, want default 2.5", fee)
	}
}

func TestAcquirerShareSplitsByTerminalClass(t *testing.T) {
	cfg := settings.Default()

	pos := record("1000", "0200", " pos ", "", civil.Date{})
	other := record("1000", "0200", "ATM", "", civil.Date{})

	posShare := AcquirerShare(pos, cfg)
	otherShare := AcquirerShare(other, cfg)

	// Default rate 0.0025 -> fee 2.5; POS share 45%, other 25%.
	if !posShare.Equal(dec("1.125")) {
		t.Errorf("POS share = %s, want 1.125", posShare)
	}
	if !otherShare.Equal(dec("0.625")) {
		t.Errorf("other share = %s, want 0.625", otherShare)
	}

	// The share splits the fee; it never reduces the net further.
	d := Derive(pos, cfg)
	if !d.NetSettlement.Equal(d.Amount.Sub(d.Fee)) {
		t.Error("net must be amount minus fee, independent of the acquirer share")
	}
}

func TestRound(t *testing.T) {
	cfg := settings.Default()
	cfg.RoundingScale = 2

	if got := Round(dec("1.005"), cfg); !got.Equal(dec("1.01")) {
		t.Errorf("Round(1.005) = %s, want 1.01", got)
	}
	if got := Round(dec("1.004"), cfg); !got.Equal(dec("1.00")) {
		t.Errorf("Round(1.004) = %s, want 1", got)
	}
}

func TestCategoryNumber(t *testing.T) {
	if n := CategoryNumber(" 5411 "); n == nil || *n != 5411 {
		t.Errorf("CategoryNumber(5411) = %v", n)
	}
	if n := CategoryNumber("MCC"); n != nil {
		t.Errorf("CategoryNumber(non-numeric) = %v, want nil", n)
	}
	if n := CategoryNumber(""); n != nil {
		t.Errorf("CategoryNumber(empty) = %v, want nil", n)
	}
}
