package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// MerchantRow is an entry of the merchant directory. The directory is owned
// by the record-management side of the system; the core only reads it to
// decorate query results.
type MerchantRow struct {
	MerchantCode string `bigquery:"merchant_code"` // REQUIRED
	Name         string `bigquery:"name"`          // REQUIRED
	City         string `bigquery:"city"`
}

// BankRow is an entry of the bank directory, keyed by institution code.
// Read-only to the core, like the merchant directory.
type BankRow struct {
	BankCode    string `bigquery:"bank_code"` // REQUIRED
	DisplayName string `bigquery:"display_name"`
	Region      string `bigquery:"region"`
}

// LookupBank returns the directory entry for one institution code, or nil
// when the code is unknown.
func (s *Store) LookupBank(ctx context.Context, bankCode string) (*BankRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT bank_code, display_name, region
		FROM %s
		WHERE bank_code = @bank_code
		LIMIT 1
	`, s.table(banksTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_code", Value: bankCode},
	}

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return nil, nil
		}
		return nil, fmt.Errorf("LookupBank: %w", err)
	}

	var row BankRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, fmt.Errorf("LookupBank: reading row: %w", err)
	}
	return &row, nil
}

// ListMerchants returns the whole merchant directory.
func (s *Store) ListMerchants(ctx context.Context) ([]*MerchantRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT merchant_code, name, city
		FROM %s
		ORDER BY merchant_code
	`, s.table(merchantsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return nil, nil
		}
		return nil, fmt.Errorf("ListMerchants: %w", err)
	}

	var rows []*MerchantRow
	for {
		var row MerchantRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMerchants: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// ListBanks returns the whole bank directory.
func (s *Store) ListBanks(ctx context.Context) ([]*BankRow, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT bank_code, display_name, region
		FROM %s
		ORDER BY bank_code
	`, s.table(banksTable)))

	it, err := q.Read(ctx)
	if err != nil {
		if errors.Is(translateNotFound(err), ErrNotInitialized) {
			return nil, nil
		}
		return nil, fmt.Errorf("ListBanks: %w", err)
	}

	var rows []*BankRow
	for {
		var row BankRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBanks: iterating: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
