package calc

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// Exprs holds BigQuery SQL expressions computing the same derivatives as the
// row evaluators, over the transactions table columns. Aggregation queries
// embed these directly (SUM(<Fee>)...) so stored per-row values are never
// trusted and historical aggregates always reflect the current rule set.
//
// The expressions reference the columns amount_raw, message_type,
// settlement_date, transaction_ts, category_code and terminal_type under the
// given table alias, and carry their rates and windows as query parameters in
// Params. Use one Exprs value per query: parameter names are fixed, so mixing
// two snapshots in one statement would collide.
type Exprs struct {
	Amount        string
	Fee           string
	AcquirerShare string
	NetSettlement string
	Params        []bigquery.QueryParameter
}

// SQLExprs compiles a settings snapshot into SQL expressions for the
// transactions table aliased as alias.
func SQLExprs(cfg settings.Config, alias string) Exprs {
	var params []bigquery.QueryParameter

	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	param := func(name string, v interface{}) string {
		params = append(params, bigquery.QueryParameter{Name: name, Value: v})
		return "@" + name
	}

	// Amount: raw amount, zeroed for configured message types.
	amount := col("amount_raw")
	if len(cfg.ZeroAmountMessageTypes) > 0 {
		params = append(params, bigquery.QueryParameter{
			Name: "calc_zero_types", Value: trimmedCopy(cfg.ZeroAmountMessageTypes),
		})
		amount = fmt.Sprintf(
			"(CASE WHEN TRIM(%s) IN UNNEST(@calc_zero_types) THEN NUMERIC '0' ELSE %s END)",
			col("message_type"), col("amount_raw"))
	}

	category := fmt.Sprintf("SAFE_CAST(TRIM(%s) AS INT64)", col("category_code"))
	effective := fmt.Sprintf("COALESCE(%s, DATE(%s))", col("settlement_date"), col("transaction_ts"))

	// Fee: ordered CASE over the tier table, first match wins, default rate
	// as the ELSE arm. Mirrors feeOf exactly.
	var b strings.Builder
	b.WriteString("(CASE")
	for i, tier := range cfg.FeeTiers {
		conds := []string{
			fmt.Sprintf("%s BETWEEN %s AND %s",
				category,
				param(fmt.Sprintf("calc_tier_%d_from", i), tier.CategoryFrom),
				param(fmt.Sprintf("calc_tier_%d_to", i), tier.CategoryTo)),
		}
		if tier.ValidFrom.IsValid() {
			conds = append(conds, fmt.Sprintf("%s >= %s",
				effective, param(fmt.Sprintf("calc_tier_%d_start", i), tier.ValidFrom)))
		}
		if tier.ValidTo.IsValid() {
			conds = append(conds, fmt.Sprintf("%s <= %s",
				effective, param(fmt.Sprintf("calc_tier_%d_end", i), tier.ValidTo)))
		}

		value := param(fmt.Sprintf("calc_tier_%d_value", i), tier.Value.Rat())
		var result string
		if tier.Kind == settings.TierFixed {
			result = value
		} else {
			result = fmt.Sprintf("%s * %s", amount, value)
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", strings.Join(conds, " AND "), result)
	}
	fmt.Fprintf(&b, " ELSE %s * %s END)",
		amount, param("calc_default_rate", cfg.DefaultFeeRate.Rat()))
	fee := b.String()

	// Acquirer share: fee times the terminal-class rate.
	params = append(params, bigquery.QueryParameter{
		Name: "calc_pos_types", Value: upperTrimmedCopy(cfg.POSTerminalTypes),
	})
	share := fmt.Sprintf(
		"(%s * (CASE WHEN UPPER(TRIM(%s)) IN UNNEST(@calc_pos_types) THEN %s ELSE %s END))",
		fee, col("terminal_type"),
		param("calc_pos_rate", cfg.POSAcquirerRate.Rat()),
		param("calc_other_rate", cfg.OtherAcquirerRate.Rat()))

	net := fmt.Sprintf("(%s - %s)", amount, fee)

	return Exprs{
		Amount:        amount,
		Fee:           fee,
		AcquirerShare: share,
		NetSettlement: net,
		Params:        params,
	}
}

func trimmedCopy(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func upperTrimmedCopy(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}
