package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// TransactionInsert is the MERGE source shape for idempotent bulk insertion
// into rtgs.transactions. It travels as an ARRAY<STRUCT> query parameter, so
// its SQL field names are the Go field names. Nullable columns use pointer
// types.
//
// Rows are immutable once inserted: created only by ingestion, deleted only
// with their import batch or by a full purge, never updated. The stored fee,
// acquirer_share and net_settlement columns are audit snapshots of the
// ingest-time rule set; every read surface recomputes them from the current
// settings instead.
type TransactionInsert struct {
	TransactionID  string
	ImportID       string
	ReferenceNo    string
	IssuerCode     string
	AcquirerCode   string
	MessageType    string
	TransactionTS  *time.Time
	SettlementDate *civil.Date
	CardMasked     string
	Currency       string
	AmountRaw      *big.Rat
	Amount         *big.Rat
	FeeRaw         *big.Rat
	Fee            *big.Rat
	AcquirerShare  *big.Rat
	NetSettlement  *big.Rat
	MerchantCode   string
	TerminalType   string
	CategoryCode   string
	ContentHash    string
}
