// Package table holds the tabular datasets used for row ingestion and
// missing-value reconstruction, and reads and writes them as CSV or XLSX.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"rag-backend/internal/models"
)

// Dataset is an ordered set of rows. Every row has one value per column, in
// column order.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// Clone returns a deep copy of d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([][]string, len(d.Rows)),
	}
	for i, row := range d.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// ColumnIndex returns the position of name, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// EnsureColumn appends an empty column called name unless it exists, and
// returns its index.
func (d *Dataset) EnsureColumn(name string) int {
	if i := d.ColumnIndex(name); i >= 0 {
		return i
	}
	d.Columns = append(d.Columns, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], "")
	}
	return len(d.Columns) - 1
}

// RowText renders a row as "col: value, col: value", leaving out the
// columns at the skip positions.
func (d *Dataset) RowText(row int, skip ...int) string {
	parts := make([]string, 0, len(d.Columns))
	for j, col := range d.Columns {
		if slices.Contains(skip, j) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", col, d.Rows[row][j]))
	}
	return strings.Join(parts, ", ")
}

// Read loads a dataset from a .csv or .xlsx file. The first row is the header.
func Read(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// IsTable reports whether Read handles the file's extension.
func IsTable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRecords(records), nil
}

// ReadXLSX loads the first sheet of a workbook.
func ReadXLSX(path string) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	if len(f.Sheets) == 0 {
		return &Dataset{}, nil
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		record := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			record[i] = cell.String()
		}
		records = append(records, record)
	}
	return fromRecords(records), nil
}

// fromRecords pads or trims every data row to the header width.
func fromRecords(records [][]string) *Dataset {
	if len(records) == 0 {
		return &Dataset{}
	}
	d := &Dataset{Columns: records[0]}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(d.Columns))
		copy(row, rec)
		d.Rows = append(d.Rows, row)
	}
	return d
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(d.Rows); err != nil {
		return err
	}
	return cw.Error()
}

const sheetName = "Sheet1"

func WriteXLSX(w io.Writer, d *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &d.Columns); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range d.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}

// WriteFile writes d to path in the given format ("csv" or "xlsx").
func WriteFile(path, format string, d *Dataset) error {
	var write func(io.Writer, *Dataset) error
	switch format {
	case "xlsx":
		write = WriteXLSX
	case "csv", "":
		write = WriteCSV
	default:
		return fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := write(f, d); err != nil {
		return err
	}
	return f.Close()
}

// CompletedPath derives the output path for a reconstructed dataset, e.g.
// data.csv becomes data_completed.xlsx for format xlsx.
func CompletedPath(input, format string) string {
	if format == "" {
		format = "csv"
	}
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return stem + "_completed." + format
}
