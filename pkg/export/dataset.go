// Package export renders tabular datasets as downloadable documents.
package export

import "fmt"

// Format is a supported export format.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
)

// ParseFormat validates a user supplied format, defaulting to PDF.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/pdf"
}

// Dataset defines tabular export content. Notes are printed under the
// table in document formats and ignored by CSV.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
	Notes   []string
}

// Renderer turns a dataset into document bytes.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
}

// RendererFor returns the renderer for a format.
func RendererFor(f Format) Renderer {
	if f == FormatCSV {
		return NewCSVExporter()
	}
	return NewPDFExporter()
}
