package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpress/internal/document"
)

// csvBatchSize is the number of data rows rendered onto one page.
const csvBatchSize = 20

// CSVParser handles CSV files. Each batch of rows becomes one page.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	meta := document.Metadata{Title: titleOf(filename), Format: formatOf(filename)}
	if len(records) == 0 {
		return document.New(filename, meta, nil)
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	var pages []document.Page
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		w := &pageWriter{}
		w.heading(2, fmt.Sprintf("Rows %d-%d", i+2, end+1)) // 1-indexed, skip header
		w.paragraph("header_row", "Headers: "+strings.Join(headers, ", "))
		for _, row := range dataRows[i:end] {
			w.paragraph("row", csvRow(headers, row))
		}
		page, err := w.page(len(pages) + 1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return document.New(filename, meta, pages)
}

func csvRow(headers, row []string) string {
	var text strings.Builder
	for j, cell := range row {
		if j < len(headers) {
			text.WriteString(headers[j] + ": " + cell)
		} else {
			text.WriteString(cell)
		}
		if j < len(row)-1 {
			text.WriteString(", ")
		}
	}
	return text.String()
}
