package calc

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

func paramNames(e Exprs) map[string]bool {
	names := make(map[string]bool, len(e.Params))
	for _, p := range e.Params {
		names[p.Name] = true
	}
	return names
}

func TestSQLExprsShape(t *testing.T) {
	cfg := settings.Default()
	cfg.FeeTiers = []settings.FeeTier{
		{
			Label:        "promo",
			CategoryFrom: 5000, CategoryTo: 5999,
			ValidFrom: civil.Date{Year: 2026, Month: 6, Day: 1},
			Kind:      settings.TierRate, Value: dec("0.001"),
		},
	}

	e := SQLExprs(cfg, "t")

	if !strings.Contains(e.Amount, "t.amount_raw") || !strings.Contains(e.Amount, "@calc_zero_types") {
		t.Errorf("Amount expression missing column or zero-types parameter: %s", e.Amount)
	}
	if !strings.Contains(e.Fee, "@calc_tier_0_value") || !strings.Contains(e.Fee, "@calc_default_rate") {
		t.Errorf("Fee expression missing tier or default-rate parameters: %s", e.Fee)
	}
	if !strings.Contains(e.Fee, "SAFE_CAST(TRIM(t.category_code) AS INT64)") {
		t.Errorf("Fee expression must derive the category from the raw column: %s", e.Fee)
	}
	if !strings.Contains(e.Fee, "COALESCE(t.settlement_date, DATE(t.transaction_ts))") {
		t.Errorf("Fee expression must fall back to the transaction date: %s", e.Fee)
	}
	if !strings.Contains(e.AcquirerShare, "@calc_pos_types") {
		t.Errorf("AcquirerShare expression missing terminal-class parameter: %s", e.AcquirerShare)
	}
	if !strings.Contains(e.NetSettlement, " - ") {
		t.Errorf("NetSettlement expression must subtract the fee: %s", e.NetSettlement)
	}

	names := paramNames(e)
	for _, want := range []string{
		"calc_zero_types", "calc_default_rate", "calc_pos_types",
		"calc_pos_rate", "calc_other_rate",
		"calc_tier_0_from", "calc_tier_0_to", "calc_tier_0_start", "calc_tier_0_value",
	} {
		if !names[want] {
			t.Errorf("missing query parameter %s", want)
		}
	}
	// An open-ended window binds no end parameter.
	if names["calc_tier_0_end"] {
		t.Error("tier without ValidTo must not bind an end parameter")
	}
}

func TestSQLExprsFixedTier(t *testing.T) {
	cfg := settings.Default()
	cfg.FeeTiers = []settings.FeeTier{
		{Label: "flat", CategoryFrom: 6000, CategoryTo: 6999, Kind: settings.TierFixed, Value: dec("7.50")},
	}

	e := SQLExprs(cfg, "t")

	// A fixed tier charges its value directly, never multiplied by amount.
	if strings.Contains(e.Fee, "* @calc_tier_0_value") {
		t.Errorf("fixed tier must not scale with the amount: %s", e.Fee)
	}
	if !strings.Contains(e.Fee, "THEN @calc_tier_0_value") {
		t.Errorf("fixed tier must charge its value: %s", e.Fee)
	}
}

func TestSQLExprsNoZeroTypes(t *testing.T) {
	cfg := settings.Default()
	cfg.ZeroAmountMessageTypes = nil

	e := SQLExprs(cfg, "t")
	if e.Amount != "t.amount_raw" {
		t.Errorf("Amount without zero types should be the bare column, got %s", e.Amount)
	}
	if paramNames(e)["calc_zero_types"] {
		t.Error("no zero-types parameter expected when the list is empty")
	}
}

func TestSQLExprsBareAlias(t *testing.T) {
	e := SQLExprs(settings.Default(), "")
	if strings.Contains(e.Amount, ".amount_raw") {
		t.Errorf("empty alias must not produce a dotted column: %s", e.Amount)
	}
}
