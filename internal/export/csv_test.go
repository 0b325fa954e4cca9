package export

import (
	"bytes"
	"encoding/csv"
	"math/big"
	"strings"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

func TestWriteTransactions(t *testing.T) {
	cfg := settings.Default()
	cfg.RoundingScale = 2

	rows := []*bigquery.TransactionView{
		{
			TransactionID: "t1",
			ReferenceNo:   "REF001",
			AcquirerCode:  "BANKB",
			BankName:      "Bank B",
			MessageType:   "0200",
			TransactionTS: bq.NullTimestamp{Timestamp: time.Date(2026, 5, 6, 10, 0, 0, 0, time.UTC), Valid: true},
			SettlementDate: bq.NullDate{
				Date: civil.Date{Year: 2026, Month: 5, Day: 7}, Valid: true,
			},
			Currency:      "IDR",
			Amount:        big.NewRat(100050, 100), // 1000.50
			Fee:           big.NewRat(2501, 1000),  // 2.501
			AcquirerShare: big.NewRat(1125, 1000),
			NetSettlement: big.NewRat(997999, 1000),
			MerchantCode:  "M001",
			TerminalType:  "POS",
			CategoryCode:  "5411",
		},
		{
			// Row with unknown timestamp, date and amounts.
			TransactionID: "t2",
			ReferenceNo:   "REF002",
		},
	}

	var buf bytes.Buffer
	if err := WriteTransactions(&buf, rows, cfg); err != nil {
		t.Fatalf("WriteTransactions: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want header + 2 rows", len(records))
	}

	header := records[0]
	if header[0] != "reference_no" || header[len(header)-1] != "source_filename" {
		t.Errorf("unexpected header order: %v", header)
	}

	row := records[1]
	get := func(col string) string {
		for i, h := range header {
			if h == col {
				return row[i]
			}
		}
		t.Fatalf("column %s not found", col)
		return ""
	}

	if got := get("transaction_ts"); got != "2026-05-06T10:00:00Z" {
		t.Errorf("transaction_ts = %q", got)
	}
	if got := get("settlement_date"); got != "2026-05-07" {
		t.Errorf("settlement_date = %q", got)
	}
	if got := get("amount"); got != "1000.5" {
		t.Errorf("amount = %q, want 1000.5", got)
	}
	if got := get("fee"); got != "2.5" {
		t.Errorf("fee = %q, want 2.5 (rounded to scale 2)", got)
	}

	// Unknowns render as empty cells, not zeros or fractions.
	empty := records[2]
	for i, h := range header {
		switch h {
		case "transaction_ts", "settlement_date", "amount", "fee", "acquirer_share", "net_settlement":
			if empty[i] != "" {
				t.Errorf("%s = %q, want empty for unknown value", h, empty[i])
			}
		}
	}
}

func TestFilename(t *testing.T) {
	name := Filename(time.Date(2026, 5, 6, 10, 30, 0, 0, time.UTC))
	if name != "transactions-20260506-103000.csv" {
		t.Errorf("Filename = %q", name)
	}
	if !strings.HasSuffix(name, ".csv") {
		t.Errorf("Filename must end in .csv: %q", name)
	}
}
