// Package handlers implements the HTTP endpoints of the settlement core.
package handlers

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/fauzanr/rtgs-settlement/internal/calc"
	"github.com/fauzanr/rtgs-settlement/internal/infra/bigquery"
	"github.com/fauzanr/rtgs-settlement/internal/settings"
)

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected YYYY-MM-DD", name)
	}
	return &d, nil
}

// parseTimeParam reads an optional RFC 3339 or YYYY-MM-DD query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return &d, nil
	}
	return nil, fmt.Errorf("invalid %s: expected RFC 3339 timestamp or YYYY-MM-DD", name)
}

// parseListParam reads a comma-separated multi-value query parameter.
func parseListParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// parseFilter builds the shared transaction filter from query parameters.
func parseFilter(r *http.Request) (bigquery.TransactionFilter, error) {
	var f bigquery.TransactionFilter
	var err error

	if f.TrxFrom, err = parseTimeParam(r, "trx_from"); err != nil {
		return f, err
	}
	if f.TrxTo, err = parseTimeParam(r, "trx_to"); err != nil {
		return f, err
	}
	if f.SettleFrom, err = parseDateParam(r, "settle_from"); err != nil {
		return f, err
	}
	if f.SettleTo, err = parseDateParam(r, "settle_to"); err != nil {
		return f, err
	}

	f.MerchantCodes = parseListParam(r, "merchant")
	f.BankCodes = parseListParam(r, "bank")
	f.CategoryCodes = parseListParam(r, "category")
	f.MessageTypes = parseListParam(r, "message_type")
	f.TerminalTypes = parseListParam(r, "terminal_type")
	f.Search = strings.TrimSpace(r.URL.Query().Get("q"))

	return f, nil
}

// money renders one NUMERIC value rounded to the configured scale.
func money(r *big.Rat, cfg settings.Config) string {
	if r == nil {
		return "0"
	}
	return calc.Round(decimal.NewFromBigRat(r, 9), cfg).String()
}
