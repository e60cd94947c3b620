// Package tabular reads the spreadsheet-shaped inputs of the pipeline (price
// master, KCD master, EDI crosswalk, review CSVs) into header-addressed rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls how a table is located inside its file.
type Options struct {
	// HeaderRow is the 1-based row holding column names. Zero means 1.
	HeaderRow int
	// Sheet selects an Excel sheet by name. Empty means the first sheet.
	Sheet string
}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadFile reads a .xlsx or .csv file. A missing file wraps
// pipeline.ErrMissingInput; an unreadable one wraps pipeline.ErrInputFormat.
func ReadFile(path string, opts Options) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcel(path, opts.Sheet)
	case ".csv", ".txt":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		rows, err = readCSV(f)
	default:
		return nil, fmt.Errorf("%w: unsupported table extension %q", pipeline.ErrInputFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInputFormat, path, err)
	}
	return FromRows(rows, opts.HeaderRow)
}

// ReadCSV reads CSV content from r; a leading UTF-8 BOM is dropped.
func ReadCSV(r io.Reader, headerRow int) (*Table, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInputFormat, err)
	}
	return FromRows(rows, headerRow)
}

// FromRows builds a table from raw rows. Rows above the header are ignored,
// as are fully empty rows below it.
func FromRows(rows [][]string, headerRow int) (*Table, error) {
	if headerRow <= 0 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil, fmt.Errorf("%w: header row %d not present (%d rows)", pipeline.ErrInputFormat, headerRow, len(rows))
	}
	t := &Table{Header: rows[headerRow-1], index: make(map[string]int)}
	for i, h := range t.Header {
		key := normalizeHeader(h)
		if _, dup := t.index[key]; !dup && key != "" {
			t.index[key] = i
		}
	}
	for _, r := range rows[headerRow:] {
		if isBlank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

// Column returns the index of the first header matching any alias, or -1.
func (t *Table) Column(aliases ...string) int {
	for _, a := range aliases {
		if i, ok := t.index[normalizeHeader(a)]; ok {
			return i
		}
	}
	return -1
}

// Require is Column but reports a missing column as an input-format error.
func (t *Table) Require(name string, aliases ...string) (int, error) {
	i := t.Column(append([]string{name}, aliases...)...)
	if i < 0 {
		return -1, fmt.Errorf("%w: required column %q not found (header: %s)",
			pipeline.ErrInputFormat, name, strings.Join(t.Header, ", "))
	}
	return i, nil
}

// Cell returns the trimmed cell at idx, or "" when idx is out of range.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, string(utf8BOM))
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Join(strings.Fields(h), "")
	return strings.ReplaceAll(h, "_", "")
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
