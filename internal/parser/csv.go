package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/markforest/internal/doctree"
)

// CSVParser handles CSV files. Each data row becomes one paragraph of
// "header: cell" pairs, so markers in the same row share a scope.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var b doctree.Builder
	title := trimExt(filename, ".csv")
	if len(records) == 0 {
		return b.Document(title), nil
	}

	// First row is headers.
	headers := records[0]
	for _, row := range records[1:] {
		var text strings.Builder
		for j, cell := range row {
			if j > 0 {
				text.WriteString(", ")
			}
			if j < len(headers) {
				text.WriteString(headers[j] + ": " + cell)
			} else {
				text.WriteString(cell)
			}
		}
		b.AddParagraph(text.String())
	}

	return b.Document(title), nil
}
