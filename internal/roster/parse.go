package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/class-builder-api/internal/allocation"
)

// Format identifies a roster encoding.
type Format string

const (
	FormatWorkbook Format = "xlsx"
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
)

// FormatFromFilename guesses the format from an uploaded file name.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatWorkbook, nil
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, name)
	}
}

// Parse reads a roster in the given format.
func (b *Builder) Parse(format Format, r io.Reader) ([]allocation.Student, error) {
	switch format {
	case FormatWorkbook:
		return b.ParseWorkbook(r)
	case FormatCSV:
		return b.ParseCSV(r)
	case FormatText:
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return b.ParseText(string(raw))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, format)
	}
}

// ParseWorkbook reads the first sheet of an xlsx workbook. The first row must
// carry the column headers.
func (b *Builder) ParseWorkbook(r io.Reader) ([]allocation.Student, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyRoster)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return b.build(records, true)
}

// ParseCSV reads a comma separated roster with a header row.
func (b *Builder) ParseCSV(r io.Reader) ([]allocation.Student, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return b.build(records, true)
}

// ParseText reads tab separated text as pasted from a spreadsheet. The header
// row is optional; without it columns follow the template order.
func (b *Builder) ParseText(text string) ([]allocation.Student, error) {
	var records [][]string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, strings.Split(line, "\t"))
	}
	return b.build(records, false)
}

func (b *Builder) build(records [][]string, requireHeader bool) ([]allocation.Student, error) {
	rows, err := fromRecords(records, requireHeader)
	if err != nil {
		return nil, err
	}
	students := b.Students(rows)
	if len(students) == 0 {
		return nil, ErrEmptyRoster
	}
	return students, nil
}
