// Package tabular reads uploaded CSV and XLSX files into a uniform
// column/row representation for embedding and preview.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat indicates an extension this package cannot read.
	ErrUnsupportedFormat = errors.New("unsupported tabular format")

	// ErrEmptyTable indicates a file with no header row.
	ErrEmptyTable = errors.New("tabular file has no header row")
)

// SupportedExtensions lists the tabular formats, lowercase without dot.
var SupportedExtensions = []string{"csv", "xlsx"}

// IsSupported reports whether ext names a readable tabular format.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Table is a parsed tabular file. The first row of the source is the
// header; every data row maps column name to cell text. Cells missing
// from short rows are empty strings.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Read parses the file at path, dispatching on ext ("csv" or "xlsx").
func Read(path, ext string) (*Table, error) {
	switch strings.ToLower(ext) {
	case "csv":
		return ReadCSV(path)
	case "xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ReadCSV reads a comma-separated file with a header row.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are padded below

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromRecords(records)
}

// ReadXLSX reads the first sheet of an Excel workbook with a header row.
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyTable
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx sheet %q: %w", sheet, err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	columns := make([]string, len(records[0]))
	for i, c := range records[0] {
		columns[i] = strings.TrimSpace(c)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// Preview returns up to n rows in column order, one []string per row.
func (t *Table) Preview(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([][]string, 0, n)
	for _, row := range t.Rows[:n] {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = row[col]
		}
		out = append(out, cells)
	}
	return out
}
