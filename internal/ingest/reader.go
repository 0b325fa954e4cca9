package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Hard limits of one ingestion request. Files above the row cap are rejected
// whole so the caller can split them; nothing is partially ingested.
const (
	MaxRows   = 150_000
	BatchSize = 2_000

	// Reject reasons retained on the batch row, and the smaller sample
	// surfaced in the import summary.
	RejectSampleSize  = 50
	SummarySampleSize = 20
)

// ValidationError is a request-level input problem (empty file, missing
// header, undecodable content). Handlers render it as a 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// RowCapError rejects a file exceeding the row cap, reporting both the cap
// and the received count so the caller can split the file.
type RowCapError struct {
	Cap      int
	Received int
}

func (e *RowCapError) Error() string {
	return fmt.Sprintf("file has %d data rows, the maximum per import is %d; split the file and re-submit", e.Received, e.Cap)
}

// Alternate delimiters tried when the first parse collapses everything into
// a single wide column.
var altDelimiters = []rune{';', '|', '\t'}

// ParseFile decodes a bulk delimited export into a header row and data rows.
// It strips a UTF-8 byte-order mark, parses as comma-separated, and re-parses
// with an alternate delimiter when the result is a single wide column that
// still contains one. Ragged rows are tolerated; later row handling decides
// their fate.
func ParseFile(data []byte) (header []string, rows [][]string, err error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	records, err := parseCSV(data, ',')
	if err != nil {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("unable to parse file: %v", err)}
	}

	// A single wide first column means the file uses another delimiter.
	if len(records) > 0 && len(records[0]) == 1 {
		for _, delim := range altDelimiters {
			if !strings.ContainsRune(records[0][0], delim) {
				continue
			}
			reparsed, rerr := parseCSV(data, delim)
			if rerr == nil && len(reparsed) > 0 && len(reparsed[0]) > 1 {
				records = reparsed
			}
			break
		}
	}

	if len(records) < 2 {
		return nil, nil, &ValidationError{Reason: "file must contain a header row and at least one data row"}
	}
	if dataRows := len(records) - 1; dataRows > MaxRows {
		return nil, nil, &RowCapError{Cap: MaxRows, Received: dataRows}
	}

	return records[0], records[1:], nil
}

func parseCSV(data []byte, delim rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}
