package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// Page size caps. Flat lists are row-heavy, grouped views are not.
const (
	MaxFlatPageSize    = 100
	MaxGroupedPageSize = 500
)

// TransactionFilter is the parameterized filter shared by the flat list,
// the grouped settlement view and the export.
type TransactionFilter struct {
	TrxFrom    *time.Time
	TrxTo      *time.Time
	SettleFrom *civil.Date
	SettleTo   *civil.Date

	MerchantCodes []string
	BankCodes     []string // matches acquirer_code
	CategoryCodes []string
	MessageTypes  []string
	TerminalTypes []string

	// Free-text search across reference number and descriptive fields.
	Search string
}

// TransactionView is one flat-list element. Amount, fee, acquirer share and
// net settlement are recomputed from the current settings inside the query;
// the stored per-row columns are never read back.
type TransactionView struct {
	TransactionID string `bigquery:"transaction_id"`
	ImportID      string `bigquery:"import_id"`
	ReferenceNo   string `bigquery:"reference_no"`
	IssuerCode    string `bigquery:"issuer_code"`
	AcquirerCode  string `bigquery:"acquirer_code"`
	MessageType   string `bigquery:"message_type"`

	TransactionTS  bigquery.NullTimestamp `bigquery:"transaction_ts"`
	SettlementDate bigquery.NullDate      `bigquery:"settlement_date"`

	CardMasked string `bigquery:"card_masked"`
	Currency   string `bigquery:"currency"`

	Amount        *big.Rat `bigquery:"amount"`
	Fee           *big.Rat `bigquery:"fee"`
	AcquirerShare *big.Rat `bigquery:"acquirer_share"`
	NetSettlement *big.Rat `bigquery:"net_settlement"`

	MerchantCode string `bigquery:"merchant_code"`
	MerchantName string `bigquery:"merchant_name"`
	MerchantCity string `bigquery:"merchant_city"`
	BankName     string `bigquery:"bank_name"`

	TerminalType   string `bigquery:"terminal_type"`
	CategoryCode   string `bigquery:"category_code"`
	SourceFilename string `bigquery:"source_filename"`
}

// SettlementGroup is one (settlement date, bank) bucket of the grouped view.
type SettlementGroup struct {
	SettlementDate civil.Date `bigquery:"settlement_date"`
	BankCode       string     `bigquery:"bank_code"`
	BankName       string     `bigquery:"bank_name"`

	Movements     int64    `bigquery:"movements"`
	Amount        *big.Rat `bigquery:"amount"`
	Fee           *big.Rat `bigquery:"fee"`
	AcquirerShare *big.Rat `bigquery:"acquirer_share"`
	NetSettlement *big.Rat `bigquery:"net_settlement"`

	// Per underlying transaction date, populated on request to surface
	// late-arriving transactions inside a settlement bucket.
	Breakdown []*SettlementSlice `bigquery:"-"`
}

// SettlementSlice is one transaction-date slice inside a settlement group.
type SettlementSlice struct {
	SettlementDate  civil.Date        `bigquery:"settlement_date"`
	BankCode        string            `bigquery:"bank_code"`
	TransactionDate bigquery.NullDate `bigquery:"transaction_date"`

	Movements     int64    `bigquery:"movements"`
	Amount        *big.Rat `bigquery:"amount"`
	Fee           *big.Rat `bigquery:"fee"`
	AcquirerShare *big.Rat `bigquery:"acquirer_share"`
	NetSettlement *big.Rat `bigquery:"net_settlement"`
}

// ListTransactions returns one page of the flat list with derivatives
// recomputed from cfg and directory names joined in.
func (s *Store) ListTransactions(ctx context.Context, cfg settings.Config, filter TransactionFilter, page, pageSize int) ([]*TransactionView, error) {
	if pageSize <= 0 || pageSize > MaxFlatPageSize {
		pageSize = MaxFlatPageSize
	}
	if page < 1 {
		page = 1
	}

	exprs := calc.SQLExprs(cfg, "t")
	where, params := buildFilter(filter, "t")
	params = append(params, exprs.Params...)
	params = append(params,
		bigquery.QueryParameter{Name: "page_limit", Value: int64(pageSize)},
		bigquery.QueryParameter{Name: "page_offset", Value: int64((page - 1) * pageSize)},
	)

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id, t.import_id, t.reference_no, t.issuer_code,
			t.acquirer_code, t.message_type, t.transaction_ts, t.settlement_date,
			t.card_masked, t.currency,
			%s AS amount,
			%s AS fee,
			%s AS acquirer_share,
			%s AS net_settlement,
			t.merchant_code,
			IFNULL(m.name, '') AS merchant_name,
			IFNULL(m.city, '') AS merchant_city,
			IFNULL(b.display_name, '') AS bank_name,
			t.terminal_type, t.category_code,
			IFNULL(ib.filename, '') AS source_filename
		FROM %s t
		LEFT JOIN %s m ON m.merchant_code = t.merchant_code
		LEFT JOIN %s b ON b.bank_code = t.acquirer_code
		LEFT JOIN %s ib ON ib.import_id = t.import_id
		%s
		ORDER BY t.transaction_ts DESC, t.reference_no
		LIMIT @page_limit OFFSET @page_offset
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable), s.table(merchantsTable), s.table(banksTable),
		s.table(importBatchesTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, translateNotFound(fmt.Errorf("ListTransactions: %w", err))
	}

	var rows []*TransactionView
	for {
		var row TransactionView
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// GroupSettlements returns one page of (settlement date, bank) buckets. All
// aggregates run over the settings-derived SQL expressions directly, never
// over stored per-row values, so they always reflect the live rule set.
// Rows without a settlement date cannot be grouped and are excluded here.
func (s *Store) GroupSettlements(ctx context.Context, cfg settings.Config, filter TransactionFilter, page, pageSize int, withBreakdown bool) ([]*SettlementGroup, error) {
	if pageSize <= 0 || pageSize > MaxGroupedPageSize {
		pageSize = MaxGroupedPageSize
	}
	if page < 1 {
		page = 1
	}

	exprs := calc.SQLExprs(cfg, "t")
	where, params := buildFilter(filter, "t")
	if where == "" {
		where = "WHERE t.settlement_date IS NOT NULL"
	} else {
		where += " AND t.settlement_date IS NOT NULL"
	}
	params = append(params, exprs.Params...)
	params = append(params,
		bigquery.QueryParameter{Name: "page_limit", Value: int64(pageSize)},
		bigquery.QueryParameter{Name: "page_offset", Value: int64((page - 1) * pageSize)},
	)

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.settlement_date,
			t.acquirer_code AS bank_code,
			IFNULL(ANY_VALUE(b.display_name), '') AS bank_name,
			COUNT(*) AS movements,
			SUM(%s) AS amount,
			SUM(%s) AS fee,
			SUM(%s) AS acquirer_share,
			SUM(%s) AS net_settlement
		FROM %s t
		LEFT JOIN %s b ON b.bank_code = t.acquirer_code
		%s
		GROUP BY t.settlement_date, t.acquirer_code
		ORDER BY t.settlement_date DESC, t.acquirer_code
		LIMIT @page_limit OFFSET @page_offset
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable), s.table(banksTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, translateNotFound(fmt.Errorf("GroupSettlements: %w", err))
	}

	var groups []*SettlementGroup
	for {
		var row SettlementGroup
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GroupSettlements: iterating: %w", err)
		}
		groups = append(groups, &row)
	}

	if withBreakdown && len(groups) > 0 {
		if err := s.attachBreakdown(ctx, cfg, filter, groups); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// attachBreakdown runs the transaction-date sub-grouping for the given
// settlement groups and stitches the slices onto their parents.
func (s *Store) attachBreakdown(ctx context.Context, cfg settings.Config, filter TransactionFilter, groups []*SettlementGroup) error {
	exprs := calc.SQLExprs(cfg, "t")
	where, params := buildFilter(filter, "t")
	if where == "" {
		where = "WHERE t.settlement_date IS NOT NULL"
	} else {
		where += " AND t.settlement_date IS NOT NULL"
	}
	params = append(params, exprs.Params...)

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.settlement_date,
			t.acquirer_code AS bank_code,
			DATE(t.transaction_ts) AS transaction_date,
			COUNT(*) AS movements,
			SUM(%s) AS amount,
			SUM(%s) AS fee,
			SUM(%s) AS acquirer_share,
			SUM(%s) AS net_settlement
		FROM %s t
		%s
		GROUP BY t.settlement_date, t.acquirer_code, transaction_date
		ORDER BY t.settlement_date DESC, t.acquirer_code, transaction_date
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return translateNotFound(fmt.Errorf("attachBreakdown: %w", err))
	}

	byKey := make(map[string]*SettlementGroup, len(groups))
	for _, g := range groups {
		byKey[g.SettlementDate.String()+"|"+g.BankCode] = g
	}

	for {
		var slice SettlementSlice
		err := it.Next(&slice)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("attachBreakdown: iterating: %w", err)
		}
		if g, ok := byKey[slice.SettlementDate.String()+"|"+slice.BankCode]; ok {
			g.Breakdown = append(g.Breakdown, &slice)
		}
	}
	return nil
}

// ExportTransactions returns every transaction matching the filter, in
// settlement-date order, for the bulk export. No pagination: export files
// are bounded by the ingestion row cap rather than a page size.
func (s *Store) ExportTransactions(ctx context.Context, cfg settings.Config, filter TransactionFilter) ([]*TransactionView, error) {
	exprs := calc.SQLExprs(cfg, "t")
	where, params := buildFilter(filter, "t")
	params = append(params, exprs.Params...)

	q := s.client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id, t.import_id, t.reference_no, t.issuer_code,
			t.acquirer_code, t.message_type, t.transaction_ts, t.settlement_date,
			t.card_masked, t.currency,
			%s AS amount,
			%s AS fee,
			%s AS acquirer_share,
			%s AS net_settlement,
			t.merchant_code,
			IFNULL(m.name, '') AS merchant_name,
			IFNULL(m.city, '') AS merchant_city,
			IFNULL(b.display_name, '') AS bank_name,
			t.terminal_type, t.category_code,
			IFNULL(ib.filename, '') AS source_filename
		FROM %s t
		LEFT JOIN %s m ON m.merchant_code = t.merchant_code
		LEFT JOIN %s b ON b.bank_code = t.acquirer_code
		LEFT JOIN %s ib ON ib.import_id = t.import_id
		%s
		ORDER BY t.settlement_date, t.acquirer_code, t.reference_no
	`,
		exprs.Amount, exprs.Fee, exprs.AcquirerShare, exprs.NetSettlement,
		s.table(transactionsTable), s.table(merchantsTable), s.table(banksTable),
		s.table(importBatchesTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, translateNotFound(fmt.Errorf("ExportTransactions: %w", err))
	}

	var rows []*TransactionView
	for {
		var row TransactionView
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ExportTransactions: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// buildFilter renders the WHERE clause and its parameters for alias'd
// transactions-table queries. Returns "" when no condition applies.
func buildFilter(f TransactionFilter, alias string) (string, []bigquery.QueryParameter) {
	var conds []string
	var params []bigquery.QueryParameter

	col := func(name string) string { return alias + "." + name }

	if f.TrxFrom != nil {
		conds = append(conds, col("transaction_ts")+" >= @f_trx_from")
		params = append(params, bigquery.QueryParameter{Name: "f_trx_from", Value: *f.TrxFrom})
	}
	if f.TrxTo != nil {
		conds = append(conds, col("transaction_ts")+" <= @f_trx_to")
		params = append(params, bigquery.QueryParameter{Name: "f_trx_to", Value: *f.TrxTo})
	}
	if f.SettleFrom != nil {
		conds = append(conds, col("settlement_date")+" >= @f_settle_from")
		params = append(params, bigquery.QueryParameter{Name: "f_settle_from", Value: *f.SettleFrom})
	}
	if f.SettleTo != nil {
		conds = append(conds, col("settlement_date")+" <= @f_settle_to")
		params = append(params, bigquery.QueryParameter{Name: "f_settle_to", Value: *f.SettleTo})
	}
	if len(f.MerchantCodes) > 0 {
		conds = append(conds, col("merchant_code")+" IN UNNEST(@f_merchants)")
		params = append(params, bigquery.QueryParameter{Name: "f_merchants", Value: f.MerchantCodes})
	}
	if len(f.BankCodes) > 0 {
		conds = append(conds, col("acquirer_code")+" IN UNNEST(@f_banks)")
		params = append(params, bigquery.QueryParameter{Name: "f_banks", Value: f.BankCodes})
	}
	if len(f.CategoryCodes) > 0 {
		conds = append(conds, col("category_code")+" IN UNNEST(@f_categories)")
		params = append(params, bigquery.QueryParameter{Name: "f_categories", Value: f.CategoryCodes})
	}
	if len(f.MessageTypes) > 0 {
		conds = append(conds, col("message_type")+" IN UNNEST(@f_msg_types)")
		params = append(params, bigquery.QueryParameter{Name: "f_msg_types", Value: f.MessageTypes})
	}
	if len(f.TerminalTypes) > 0 {
		conds = append(conds, "UPPER(TRIM("+col("terminal_type")+")) IN UNNEST(@f_terminals)")
		upper := make([]string, len(f.TerminalTypes))
		for i, t := range f.TerminalTypes {
			upper[i] = strings.ToUpper(strings.TrimSpace(t))
		}
		params = append(params, bigquery.QueryParameter{Name: "f_terminals", Value: upper})
	}
	if f.Search != "" {
		conds = append(conds, fmt.Sprintf(
			"(%s LIKE CONCAT('%%', @f_search, '%%') OR %s LIKE CONCAT('%%', @f_search, '%%') OR %s LIKE CONCAT('%%', @f_search, '%%'))",
			col("reference_no"), col("merchant_code"), col("card_masked")))
		params = append(params, bigquery.QueryParameter{Name: "f_search", Value: f.Search})
	}

	if len(conds) == 0 {
		return "", params
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}
