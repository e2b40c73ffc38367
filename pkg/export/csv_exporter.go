package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is a header-keyed table.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Records returns the header line followed by every row in header order.
func (d Dataset) Records() [][]string {
	out := make([][]string, 0, len(d.Rows)+1)
	out = append(out, d.Headers)
	for _, row := range d.Rows {
		record := make([]string, len(d.Headers))
		for i, header := range d.Headers {
			record[i] = row[header]
		}
		out = append(out, record)
	}
	return out
}

// CSVExporter writes class lists and roster templates as CSV.
type CSVExporter struct {
	comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{comma: ','}
}

// Render encodes the dataset, header line first.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = e.comma
	if err := writer.WriteAll(data.Records()); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderDocument writes one row per placed student.
func (e *CSVExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.Empty() {
		return nil, ErrEmptyDocument
	}
	return e.Render(doc.Dataset())
}
