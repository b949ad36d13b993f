// Package fetcher reads cutoff export and reference seed files (CSV, XLSX)
// into in-memory row sets.
package fetcher

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Rows is a fully-read tabular file: one header row plus data rows.
// Each data row has the same length as the header (short rows are padded).
type Rows struct {
	Header []string
	Rows   [][]string
}

// Index returns a column-name -> position map for the header,
// case-insensitive and trimmed.
func (r *Rows) Index() map[string]int {
	idx := make(map[string]int, len(r.Header))
	for i, h := range r.Header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // IANA charset name; empty = UTF-8
}

// ReadCSV reads an entire CSV file into memory. OCR-derived exports are
// small enough that streaming buys nothing, and the pipeline needs the
// row count up front for session accounting.
func ReadCSV(path string, opts CSVOptions) (*Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close()

	var r io.Reader = f
	if opts.Charset != "" {
		r, err = decodeReader(f, opts.Charset)
		if err != nil {
			return nil, err
		}
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	if len(records) == 0 {
		return nil, eris.New("csv: file is empty")
	}

	for _, rec := range records {
		for i, field := range rec {
			rec[i] = strings.TrimSpace(field)
		}
	}

	out := &Rows{Header: records[0]}
	for _, rec := range records[1:] {
		out.Rows = append(out.Rows, padRow(rec, len(out.Header)))
	}
	return out, nil
}

// decodeReader wraps r with a charset decoder resolved by IANA name.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unknown charset %q", charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
