package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet of an XLSX file into memory. The first row is
// treated as the header.
func ReadXLSX(path string, opts XLSXOptions) (*Rows, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("xlsx: sheet is empty")
	}

	out := &Rows{Header: rowToStrings(sheet.Rows[0])}
	for _, row := range sheet.Rows[1:] {
		out.Rows = append(out.Rows, padRow(rowToStrings(row), len(out.Header)))
	}
	return out, nil
}

// ReadTable dispatches on file extension: .csv goes through ReadCSV,
// .xlsx through ReadXLSX.
func ReadTable(path string) (*Rows, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		return ReadCSV(path, CSVOptions{})
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported file type: %s", path)
	}
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}
