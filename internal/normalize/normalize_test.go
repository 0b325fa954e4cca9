package normalize

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "lowercases and collapses whitespace",
			in:   []string{"Reference No", "ISSUER  CODE", "amount"},
			want: []string{"reference_no", "issuer_code", "amount"},
		},
		{
			name: "strips BOM and quotes",
			in:   []string{"\ufeffreference_no", `"amount"`, "'fee'"},
			want: []string{"reference_no", "amount", "fee"},
		},
		{
			name: "tabs and mixed whitespace",
			in:   []string{" settlement \t date "},
			want: []string{"settlement_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanHeader(tt.in)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("CleanHeader(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		in   string
		want civil.Date
	}{
		// Dashed form: larger-than-12 part must be the day.
		{"2026-13-05", civil.Date{Year: 2026, Month: time.May, Day: 13}},
		{"2026-05-13", civil.Date{Year: 2026, Month: time.May, Day: 13}},
		// Both ambiguous: the smaller part is the month.
		{"2026-10-01", civil.Date{Year: 2026, Month: time.January, Day: 10}},
		{"2026-05-06", civil.Date{Year: 2026, Month: time.May, Day: 6}},
		// Tie: first part is the month.
		{"2026-07-07", civil.Date{Year: 2026, Month: time.July, Day: 7}},
		// Slashed form: first part is always the day.
		{"10/1/2026", civil.Date{Year: 2026, Month: time.January, Day: 10}},
		{"01/10/2026", civil.Date{Year: 2026, Month: time.October, Day: 1}},
		// Trailing time component is dropped.
		{"2026-05-06 14:30:00", civil.Date{Year: 2026, Month: time.May, Day: 6}},
		// Unparseable input yields the zero date.
		{"", civil.Date{}},
		{"garbage", civil.Date{}},
		{"2026-14-13", civil.Date{}},
		{"26-05-06", civil.Date{}},
		{"10/1/26", civil.Date{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseFlexibleDate(tt.in); got != tt.want {
				t.Errorf("ParseFlexibleDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskCard(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4111222233334444", "****4444"},
		{"  4111222233334444  ", "****4444"},
		{"1234", "****1234"},
		{"12", "****12"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MaskCard(tt.in); got != tt.want {
			t.Errorf("MaskCard(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAliasResolution(t *testing.T) {
	header := CleanHeader([]string{"RRN", "Issuer", "Acquirer Bank", "MTI", "Trx Time", "Sett Date", "PAN", "CCY", "Gross Amount", "Interchange Fee", "MID", "Term Type", "MCC"})
	fields := []string{"REF001", "BANKA", "BANKB", "0200", "2026-05-06 10:00:00", "2026-05-07", "4111222233334444", "idr", "1,500.00", "2.5", "M001", "pos", "5411"}

	rec, reject := Normalize(header, fields, 1)
	if reject != nil {
		t.Fatalf("Normalize rejected valid row: %s", reject.Reason)
	}

	if rec.ReferenceNo != "REF001" {
		t.Errorf("ReferenceNo = %q, want REF001", rec.ReferenceNo)
	}
	if rec.AcquirerCode != "BANKB" {
		t.Errorf("AcquirerCode = %q, want BANKB", rec.AcquirerCode)
	}
	if rec.Currency != "IDR" {
		t.Errorf("Currency = %q, want IDR (uppercased)", rec.Currency)
	}
	if rec.CardMasked != "****4444" {
		t.Errorf("CardMasked = %q, want ****4444", rec.CardMasked)
	}
	if rec.AmountRaw.String() != "1500" {
		t.Errorf("AmountRaw = %s, want 1500 (thousands separator stripped)", rec.AmountRaw)
	}
	want := civil.Date{Year: 2026, Month: time.May, Day: 7}
	if rec.SettlementDate != want {
		t.Errorf("SettlementDate = %v, want %v", rec.SettlementDate, want)
	}
	if rec.TransactionTS == nil {
		t.Error("TransactionTS = nil, want parsed timestamp")
	}
	if rec.ContentHash == "" {
		t.Error("ContentHash is empty")
	}
}

func TestNormalizeRejectsMissingReference(t *testing.T) {
	header := CleanHeader([]string{"reference_no", "amount"})

	rec, reject := Normalize(header, []string{"", "100"}, 7)
	if rec != nil || reject == nil {
		t.Fatal("expected reject for row without reference")
	}
	if reject.Row != 7 {
		t.Errorf("Reject.Row = %d, want 7", reject.Row)
	}
}

func TestNormalizeFirstColumnFallback(t *testing.T) {
	// No reference alias in the header at all; a plausible first column
	// stands in.
	header := CleanHeader([]string{"txn", "amount"})

	rec, reject := Normalize(header, []string{"ABC12345", "100"}, 1)
	if reject != nil {
		t.Fatalf("unexpected reject: %s", reject.Reason)
	}
	if rec.ReferenceNo != "ABC12345" {
		t.Errorf("ReferenceNo = %q, want ABC12345", rec.ReferenceNo)
	}

	// Too short or non-alphanumeric first columns do not qualify.
	if rec, _ := Normalize(header, []string{"AB1", "100"}, 2); rec != nil {
		t.Error("short first column should not stand in for a reference")
	}
	if rec, _ := Normalize(header, []string{"ABC 12345", "100"}, 3); rec != nil {
		t.Error("first column with spaces should not stand in for a reference")
	}
}

func TestContentHashStability(t *testing.T) {
	header := CleanHeader([]string{"reference_no", "amount", "currency"})
	fields := []string{"REF001", "100.50", "IDR"}

	a, _ := Normalize(header, fields, 1)
	b, _ := Normalize(header, fields, 99)
	if a.ContentHash != b.ContentHash {
		t.Error("identical content must hash identically regardless of row position")
	}

	c, _ := Normalize(header, []string{"REF001", "100.51", "IDR"}, 1)
	if a.ContentHash == c.ContentHash {
		t.Error("different amounts must produce different hashes")
	}
}

func TestContentHashCoversHashOnlyColumns(t *testing.T) {
	// Two rows identical in every stored field but differing in a hash-only
	// column (stan) are distinct movements.
	header := CleanHeader([]string{"reference_no", "amount", "stan"})

	a, _ := Normalize(header, []string{"REF001", "100", "000001"}, 1)
	b, _ := Normalize(header, []string{"REF001", "100", "000002"}, 2)
	if a.ContentHash == b.ContentHash {
		t.Error("hash must cover hash-only columns")
	}
}

func TestParseTimestamp(t *testing.T) {
	if ts := ParseTimestamp("2026-05-06 14:30:00"); ts == nil || ts.Hour() != 14 {
		t.Errorf("ParseTimestamp datetime form = %v", ts)
	}
	if ts := ParseTimestamp("2026-05-06"); ts == nil || !ts.Equal(time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseTimestamp date-only form = %v, want midnight UTC", ts)
	}
	if ts := ParseTimestamp(""); ts != nil {
		t.Errorf("ParseTimestamp(\"\") = %v, want nil", ts)
	}
	if ts := ParseTimestamp("not a time"); ts != nil {
		t.Errorf("ParseTimestamp(garbage) = %v, want nil", ts)
	}
}
