package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Record is one RTGS export row in canonical form, ready for calculation and
// storage. Zero-value dates and empty strings mean "unknown"; only a missing
// reference number rejects a row.
type Record struct {
	ReferenceNo    string
	IssuerCode     string
	AcquirerCode   string
	MessageType    string
	TransactionTS  *time.Time
	SettlementDate civil.Date
	CardMasked     string
	Currency       string
	AmountRaw      decimal.Decimal
	FeeRaw         decimal.Decimal
	MerchantCode   string
	TerminalType   string
	CategoryCode   string
	ContentHash    string
}

// Reject describes a row that could not be normalized. Rejects are collected
// per row and never abort the surrounding batch.
type Reject struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

const maskPrefix = "****"

// Ordered alias lists per logical field. The canonical export column name
// comes first, followed by names seen in older feed versions. Resolution is
// first non-empty match.
var (
	referenceAliases   = []string{"reference_no", "ref_no", "retrieval_ref_no", "rrn", "no_ref"}
	issuerAliases      = []string{"issuer_code", "issuer", "issuer_bank"}
	acquirerAliases    = []string{"acquirer_code", "acquirer", "acquirer_bank", "institution_code"}
	messageTypeAliases = []string{"message_type", "msg_type", "mti"}
	trxTimeAliases     = []string{"transaction_datetime", "transaction_time", "trx_datetime", "trx_time"}
	settleDateAliases  = []string{"settlement_date", "settle_date", "sett_date"}
	cardAliases        = []string{"card_no", "card_number", "pan"}
	currencyAliases    = []string{"currency", "currency_code", "ccy"}
	amountAliases      = []string{"amount", "transaction_amount", "trx_amount", "gross_amount"}
	feeAliases         = []string{"fee", "fee_amount", "interchange_fee"}
	merchantAliases    = []string{"merchant_code", "merchant_id", "mid"}
	terminalAliases    = []string{"terminal_type", "terminal", "term_type"}
	categoryAliases    = []string{"category_code", "category", "mcc", "mcc_code"}

	// Hash-only fields: resolved for deduplication but not stored.
	stanAliases       = []string{"stan", "trace_no", "system_trace"}
	approvalAliases   = []string{"approval_code", "auth_code"}
	descAliases       = []string{"description", "remark", "narrative"}
	batchAliases      = []string{"batch_no", "batch"}
	processingAliases = []string{"processing_code", "proc_code"}
	responseAliases   = []string{"response_code", "resp_code"}
	destAcctAliases   = []string{"destination_account", "dest_account", "account_to"}
)

// CleanHeader canonicalizes raw header cells: strips the UTF-8 byte-order
// mark, surrounding quotes and whitespace, lower-cases, and collapses inner
// whitespace runs to a single underscore so "Reference No" and "reference_no"
// resolve to the same field.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		h = strings.Trim(h, `"'`)
		h = strings.TrimSpace(strings.ToLower(h))
		h = strings.Join(strings.Fields(h), "_")
		out[i] = h
	}
	return out
}

// Row is one raw data row indexed by its cleaned header.
type Row struct {
	header []string
	index  map[string]int
	fields []string
}

// NewRow pairs a cleaned header with one row of raw field values.
func NewRow(cleanedHeader, fields []string) Row {
	index := make(map[string]int, len(cleanedHeader))
	for i, h := range cleanedHeader {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	return Row{header: cleanedHeader, index: index, fields: fields}
}

// Lookup returns the trimmed value of the first non-empty alias.
func (r Row) Lookup(aliases []string) string {
	for _, name := range aliases {
		i, ok := r.index[name]
		if !ok || i >= len(r.fields) {
			continue
		}
		if v := strings.TrimSpace(r.fields[i]); v != "" {
			return v
		}
	}
	return ""
}

// First returns the trimmed value of the first column, or "".
func (r Row) First() string {
	if len(r.fields) == 0 {
		return ""
	}
	return strings.TrimSpace(r.fields[0])
}

// Normalize converts one raw row into a canonical Record. rowNum is the
// 1-based position within the file (header excluded) used in reject reasons.
//
// Only one condition rejects a row: no resolvable reference number. Every
// other field tolerates absence and normalizes to its zero value.
func Normalize(cleanedHeader, fields []string, rowNum int) (*Record, *Reject) {
	row := NewRow(cleanedHeader, fields)

	ref := row.Lookup(referenceAliases)
	if ref == "" {
		if first := row.First(); looksLikeReference(first) {
			ref = first
		} else {
			return nil, &Reject{Row: rowNum, Reason: "no reference number in any candidate column"}
		}
	}

	rec := &Record{
		ReferenceNo:    ref,
		IssuerCode:     row.Lookup(issuerAliases),
		AcquirerCode:   row.Lookup(acquirerAliases),
		MessageType:    row.Lookup(messageTypeAliases),
		TransactionTS:  ParseTimestamp(row.Lookup(trxTimeAliases)),
		SettlementDate: ParseFlexibleDate(row.Lookup(settleDateAliases)),
		CardMasked:     MaskCard(row.Lookup(cardAliases)),
		Currency:       strings.ToUpper(row.Lookup(currencyAliases)),
		AmountRaw:      parseDecimal(row.Lookup(amountAliases)),
		FeeRaw:         parseDecimal(row.Lookup(feeAliases)),
		MerchantCode:   row.Lookup(merchantAliases),
		TerminalType:   row.Lookup(terminalAliases),
		CategoryCode:   row.Lookup(categoryAliases),
	}
	rec.ContentHash = contentHash(rec, row)

	return rec, nil
}

// looksLikeReference reports whether a bare first-column value can stand in
// for a missing reference number: alphanumeric and at least 6 characters.
func looksLikeReference(v string) bool {
	if len(v) < 6 {
		return false
	}
	for _, r := range v {
		alnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !alnum {
			return false
		}
	}
	return true
}

// MaskCard hides all but the trailing four characters of a card identifier.
// Empty input stays empty rather than becoming a masked empty string.
func MaskCard(card string) string {
	card = strings.TrimSpace(card)
	if card == "" {
		return ""
	}
	if len(card) <= 4 {
		return maskPrefix + card
	}
	return maskPrefix + card[len(card)-4:]
}

// ParseFlexibleDate parses the feed's two date shapes, resolving day/month
// ambiguity explicitly:
//
//   - "Y-P1-P2": if P1 > 12 it must be the day; if P2 > 12 it must be the day;
//     when both could be a month the smaller value is the month, a tie making
//     P1 the month.
//   - "P1/P2/Y": P1 is always the day and P2 always the month.
//
// Anything else yields the zero Date, which downstream treats as unknown.
func ParseFlexibleDate(s string) civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}
	}
	// Drop a trailing time component if present.
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			return civil.Date{}
		}
		year, okY := atoi(parts[0])
		p1, ok1 := atoi(parts[1])
		p2, ok2 := atoi(parts[2])
		if !okY || !ok1 || !ok2 || len(parts[0]) != 4 {
			return civil.Date{}
		}
		var month, day int
		switch {
		case p1 > 12 && p2 <= 12:
			day, month = p1, p2
		case p1 <= 12 && p2 > 12:
			month, day = p1, p2
		case p1 <= 12 && p2 <= 12:
			if p1 <= p2 {
				month, day = p1, p2
			} else {
				month, day = p2, p1
			}
		default:
			return civil.Date{}
		}
		return validDate(year, month, day)
	}

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) != 3 {
			return civil.Date{}
		}
		day, okD := atoi(parts[0])
		month, okM := atoi(parts[1])
		year, okY := atoi(parts[2])
		if !okD || !okM || !okY || len(parts[2]) != 4 {
			return civil.Date{}
		}
		return validDate(year, month, day)
	}

	return civil.Date{}
}

// ParseTimestamp parses the transaction timestamp column. It tries the exact
// layouts the feed emits, then falls back to the flexible date parser with a
// midnight time. Nil means unknown.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	if d := ParseFlexibleDate(s); d.IsValid() {
		ts := d.In(time.UTC)
		return &ts
	}
	return nil
}

func validDate(year, month, day int) civil.Date {
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}
	}
	return d
}

func atoi(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// contentHash digests the ordered field list below (version 1). The hash is
// the sole deduplication key, so this list must never change silently: rows
// hashed under an older list need a migration before the list moves on.
//
// Fields, in order: reference_no, issuer_code, acquirer_code, message_type,
// transaction_ts, settlement_date, card_masked, currency, amount_raw,
// fee_raw, merchant_code, terminal_type, category_code, and the hash-only
// raw columns stan, approval_code, description, batch_no, processing_code,
// response_code, destination_account.
func contentHash(rec *Record, row Row) string {
	ts := ""
	if rec.TransactionTS != nil {
		ts = rec.TransactionTS.UTC().Format(time.RFC3339)
	}
	settle := ""
	if rec.SettlementDate.IsValid() {
		settle = rec.SettlementDate.String()
	}

	parts := []string{
		rec.ReferenceNo,
		rec.IssuerCode,
		rec.AcquirerCode,
		rec.MessageType,
		ts,
		settle,
		rec.CardMasked,
		rec.Currency,
		rec.AmountRaw.String(),
		rec.FeeRaw.String(),
		rec.MerchantCode,
		rec.TerminalType,
		rec.CategoryCode,
		row.Lookup(stanAliases),
		row.Lookup(approvalAliases),
		row.Lookup(descAliases),
		row.Lookup(batchAliases),
		row.Lookup(processingAliases),
		row.Lookup(responseAliases),
		row.Lookup(destAcctAliases),
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
