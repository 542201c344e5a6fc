package export

import (
	"fmt"
	"strings"
)

// Format selects the document encoding of an export.
type Format string

// Supported export formats.
const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises a user supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type of documents in format f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render encodes the dataset in the requested format.
func Render(f Format, data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("export requires at least one header")
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(data.Headers))
		}
	}
	switch f {
	case FormatPDF:
		return renderPDF(data)
	case FormatCSV:
		return renderCSV(data)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}
