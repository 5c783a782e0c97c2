package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus data rows. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, true
}

// SetColumn replaces the named column in place, or appends it when absent.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		idx = len(t.Header) - 1
	}
	for i := range t.Rows {
		for len(t.Rows[i]) <= idx {
			t.Rows[i] = append(t.Rows[i], "")
		}
		t.Rows[i][idx] = values[i]
	}
	return nil
}

type format int

const (
	formatXLSX format = iota
	formatCSV
	formatTSV
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".csv":
		return formatCSV, nil
	case ".tsv":
		return formatTSV, nil
	}
	return 0, fmt.Errorf("unsupported file type: %s", path)
}

// Supported reports whether path has an extension Read and Write handle.
func Supported(path string) bool {
	_, err := formatOf(path)
	return err == nil
}

// Read loads the first worksheet of an xlsx file, or a csv/tsv file. The
// first row is the header; short rows are padded and long rows trimmed.
func Read(path string) (*Table, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var all [][]string
	switch f {
	case formatXLSX:
		all, err = readExcel(content)
	default:
		all, err = readDelimited(content, f == formatTSV)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(all) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: all[0], Rows: make([][]string, 0, len(all)-1)}
	for i, h := range t.Header {
		t.Header[i] = strings.TrimSpace(h)
	}
	for _, row := range all[1:] {
		fixed := make([]string, len(t.Header))
		copy(fixed, row)
		t.Rows = append(t.Rows, fixed)
	}
	return t, nil
}

func readDelimited(content []byte, tsv bool) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	if tsv {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readExcel(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in workbook")
	}
	return f.GetRows(sheets[0])
}

// Write stores t at path, replacing any existing file.
func Write(path string, t *Table) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	switch f {
	case formatXLSX:
		err = writeExcel(path, t)
	default:
		err = writeDelimitedFile(path, t, f == formatTSV)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeDelimitedFile(path string, t *Table, tsv bool) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeDelimited(out, t, tsv); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeDelimited(w io.Writer, t *Table, tsv bool) error {
	cw := csv.NewWriter(w)
	if tsv {
		cw.Comma = '\t'
	}
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeExcel(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
