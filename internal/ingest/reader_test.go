package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseFileComma(t *testing.T) {
	data := []byte("reference_no,amount\nREF001,100\nREF002,200\n")

	header, rows, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(header) != 2 || header[0] != "reference_no" {
		t.Errorf("header = %v", header)
	}
	if len(rows) != 2 || rows[1][0] != "REF002" {
		t.Errorf("rows = %v", rows)
	}
}

func TestParseFileAlternateDelimiters(t *testing.T) {
	for _, delim := range []string{";", "|", "\t"} {
		t.Run(fmt.Sprintf("delim %q", delim), func(t *testing.T) {
			data := []byte("reference_no" + delim + "amount\nREF001" + delim + "100\n")

			header, rows, err := ParseFile(data)
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			if len(header) != 2 {
				t.Fatalf("header not re-sniffed: %v", header)
			}
			if rows[0][0] != "REF001" || rows[0][1] != "100" {
				t.Errorf("rows = %v", rows)
			}
		})
	}
}

func TestParseFileStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("reference_no,amount\nREF001,100\n")...)

	header, _, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if header[0] != "reference_no" {
		t.Errorf("header[0] = %q, BOM not stripped", header[0])
	}
}

func TestParseFileTooShort(t *testing.T) {
	for _, data := range []string{"", "reference_no,amount\n"} {
		_, _, err := ParseFile([]byte(data))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("ParseFile(%q) error = %v, want ValidationError", data, err)
		}
	}
}

func TestParseFileRowCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("reference_no,amount\n")
	for i := 0; i <= MaxRows; i++ {
		fmt.Fprintf(&b, "REF%06d,100\n", i)
	}

	_, _, err := ParseFile([]byte(b.String()))
	var capErr *RowCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want RowCapError", err)
	}
	if capErr.Cap != MaxRows || capErr.Received != MaxRows+1 {
		t.Errorf("RowCapError = %+v", capErr)
	}
}

func TestParseFileRaggedRowsTolerated(t *testing.T) {
	data := []byte("reference_no,amount,currency\nREF001,100\nREF002,200,IDR,extra\n")

	_, rows, err := ParseFile(data)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("len(rows) = %d, want 2", len(rows))
	}
}
