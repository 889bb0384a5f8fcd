package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/api/internal/content"
)

type fakeReports struct {
	report Report
	err    error
}

func (f fakeReports) ReportForExport(context.Context, string) (Report, error) {
	return f.report, f.err
}

type failingDirectory struct{}

func (failingDirectory) TasksByIDs(context.Context, []string) ([]content.TaskRecord, error) {
	return nil, errors.New("db down")
}

func (failingDirectory) UsersByIDs(context.Context, []string) ([]content.UserRecord, error) {
	return nil, errors.New("db down")
}

var updated = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

func TestExportHTMLRendersChips(t *testing.T) {
	reports := fakeReports{report: Report{
		ID:         "r1",
		AuthorName: "Dana Scully",
		Content:    "Fixed #TASK-99\n- Reviewed <PR>",
		UpdatedAt:  updated,
	}}
	svc := NewService(reports, content.NewParser(nil, zerolog.Nop()), nil)

	res, err := svc.Export(context.Background(), Request{ReportID: "r1", Format: FormatHTML})
	require.NoError(t, err)

	page := string(res.Data)
	assert.Equal(t, "Daily-report-Dana-Scully-2026-03-04.html", res.Filename)
	assert.Contains(t, page, `<span class="task-chip" data-task-id="99" contenteditable="false">#99</span>`)
	assert.Contains(t, page, "<li>Reviewed &lt;PR&gt;</li>")
	assert.Contains(t, page, "Mar 4, 2026 09:30")
}

func TestExportDegradedPrintsEscapedRaw(t *testing.T) {
	raw := "<b>hi</b> @11111111-1111-1111-1111-111111111111"
	svc := NewService(fakeReports{report: Report{Content: raw}}, content.NewParser(failingDirectory{}, zerolog.Nop()), nil)

	res, err := svc.Export(context.Background(), Request{ReportID: "r1", Format: FormatHTML})
	require.NoError(t, err)

	page := string(res.Data)
	assert.Contains(t, page, `<pre class="raw">&lt;b&gt;hi&lt;/b&gt; @11111111`)
	assert.NotContains(t, page, "<b>hi</b>")
	assert.Equal(t, "Daily-report.html", res.Filename)
}

func TestExportPDFUsesRenderer(t *testing.T) {
	var gotHTML string
	pdf := func(_ context.Context, html string) ([]byte, error) {
		gotHTML = html
		return []byte("%PDF-1.7"), nil
	}
	svc := NewService(fakeReports{report: Report{AuthorName: "ana", Content: "done"}}, content.NewParser(nil, zerolog.Nop()), pdf)

	res, err := svc.Export(context.Background(), Request{ReportID: "r1", Format: FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, []byte("%PDF-1.7"), res.Data)
	assert.True(t, strings.HasPrefix(gotHTML, "<!DOCTYPE html>"))
	assert.Contains(t, gotHTML, "<p>done</p>")
}

func TestExportErrors(t *testing.T) {
	parser := content.NewParser(nil, zerolog.Nop())

	_, err := NewService(fakeReports{}, parser, nil).Export(context.Background(), Request{Format: "docx"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	notFound := errors.New("not found")
	_, err = NewService(fakeReports{err: notFound}, parser, nil).Export(context.Background(), Request{Format: FormatPDF})
	assert.ErrorIs(t, err, notFound)

	missing := func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	}
	_, err = NewService(fakeReports{}, parser, missing).Export(context.Background(), Request{Format: FormatPDF})
	assert.ErrorIs(t, err, ErrPDFDependencyMissing)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Daily report", want: "Daily-report"},
		{in: "a/b\\c:d", want: "abcd"},
		{in: "", want: "report"},
		{in: strings.Repeat("x", 80), want: strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}
