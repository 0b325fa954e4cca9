// Package export renders transaction query results as downloadable CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// Column order of the transaction export. Fixed so downstream spreadsheets
// and loaders can rely on it.
var transactionHeader = []string{
	"reference_no",
	"issuer_code",
	"acquirer_code",
	"bank_name",
	"message_type",
	"transaction_ts",
	"settlement_date",
	"card_masked",
	"currency",
	"amount",
	"fee",
	"acquirer_share",
	"net_settlement",
	"merchant_code",
	"merchant_name",
	"merchant_city",
	"terminal_type",
	"category_code",
	"source_filename",
}

// WriteTransactions streams the rows as CSV. Monetary values are rounded to
// the configured scale here, at the presentation boundary; the query layer
// hands them over unrounded.
func WriteTransactions(w io.Writer, rows []*bigquery.TransactionView, cfg settings.Config) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("WriteTransactions: writing header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.ReferenceNo,
			row.IssuerCode,
			row.AcquirerCode,
			row.BankName,
			row.MessageType,
			formatTS(row.TransactionTS),
			formatDate(row.SettlementDate),
			row.CardMasked,
			row.Currency,
			money(row.Amount, cfg),
			money(row.Fee, cfg),
			money(row.AcquirerShare, cfg),
			money(row.NetSettlement, cfg),
			row.MerchantCode,
			row.MerchantName,
			row.MerchantCity,
			row.TerminalType,
			row.CategoryCode,
			row.SourceFilename,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("WriteTransactions: writing row %s: %w", row.ReferenceNo, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteTransactions: flushing: %w", err)
	}
	return nil
}

// Filename names a download after the moment it was produced.
func Filename(now time.Time) string {
	return fmt.Sprintf("transactions-%s.csv", now.Format("20060102-150405"))
}

func money(r *big.Rat, cfg settings.Config) string {
	if r == nil {
		return ""
	}
	return calc.Round(decimal.NewFromBigRat(r, 9), cfg).String()
}

func formatTS(ts bq.NullTimestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Timestamp.UTC().Format(time.RFC3339)
}

func formatDate(d bq.NullDate) string {
	if !d.Valid {
		return ""
	}
	return d.Date.String()
}
