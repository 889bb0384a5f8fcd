// Package export renders reports to printable documents.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Request names the report to export and the output format.
type Request struct {
	ReportID string
	Format   Format
}

// Report is what an export needs to know about a report.
type Report struct {
	ID         string
	AuthorName string
	Content    string
	UpdatedAt  time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no Chromium binary is installed.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	ErrUnsupportedFormat    = errors.New("export format not supported")
)
