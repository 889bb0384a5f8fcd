package export

import (
	"context"
	"fmt"
	"html/template"

	"huddle/api/internal/content"
)

// ReportSource loads a report for export.
type ReportSource interface {
	ReportForExport(ctx context.Context, reportID string) (Report, error)
}

// Renderer renders persisted content to markup.
type Renderer interface {
	Parse(ctx context.Context, raw string) content.Result
}

// Service exports reports as HTML pages or PDFs.
type Service struct {
	reports  ReportSource
	renderer Renderer
	pdf      PDFRenderer
}

// NewService creates an export service. pdf may be nil to use headless
// Chromium.
func NewService(reports ReportSource, renderer Renderer, pdf PDFRenderer) *Service {
	if pdf == nil {
		pdf = ChromePDF
	}
	return &Service{reports: reports, renderer: renderer, pdf: pdf}
}

// Export renders the report through the content parser, so references show
// as chips with current titles and names. A degraded parse prints the raw
// text instead.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Format != FormatPDF && req.Format != FormatHTML {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	report, err := s.reports.ReportForExport(ctx, req.ReportID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	title := "Daily report"
	if report.AuthorName != "" {
		title = "Daily report: " + report.AuthorName
	}
	if !report.UpdatedAt.IsZero() {
		title += " " + report.UpdatedAt.Format("2006-01-02")
	}

	data := TemplateData{
		Title:     title,
		Author:    report.AuthorName,
		UpdatedAt: report.UpdatedAt,
	}
	res := s.renderer.Parse(ctx, report.Content)
	if res.Degraded() {
		data.Degraded = true
		data.Raw = report.Content
	} else {
		data.ContentHTML = template.HTML(res.HTML)
	}

	page, err := RenderReportHTML(data)
	if err != nil {
		return nil, err
	}

	if req.Format == FormatHTML {
		return &Result{
			Data:     []byte(page),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	}

	pdf, err := s.pdf(ctx, page)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}
