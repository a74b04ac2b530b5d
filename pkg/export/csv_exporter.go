package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is one titled block of tabular content.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Document groups the tables of a rendered report.
type Document struct {
	Title   string
	Summary []string
	Tables  []Table
}

// CSVExporter flattens a Document into a single CSV sheet. Every table must
// share the same headers; the table title becomes the leading "section" column.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the document.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Tables) == 0 || len(doc.Tables[0].Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one table with headers")
	}
	headers := doc.Tables[0].Headers
	for _, table := range doc.Tables[1:] {
		if !sameHeaders(headers, table.Headers) {
			return nil, fmt.Errorf("csv table %q headers differ from %q", table.Title, doc.Tables[0].Title)
		}
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(append([]string{"section"}, headers...)); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, table := range doc.Tables {
		for _, row := range table.Rows {
			record := make([]string, len(headers)+1)
			record[0] = table.Title
			copy(record[1:], row)
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func sameHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
