// Package content converts persisted report and task text to interactive
// markup and serializes edited editor trees back to the persisted form.
//
// The persisted form is plain text with inline reference tokens:
// "#TASK-<id>" for tasks and "@<id>" for users. Older rows may also hold
// block markup, bracket tags ("[TASK:<id>|<title>]") or editor spans that were
// saved without conversion; all of these are accepted on read and none of
// them is ever written.
package content

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Document is persisted content with an explicit shape. It is either
// PlainText or Markup.
type Document interface {
	text() string
	isMarkup() bool
}

// PlainText is content stored as text with ad-hoc list markers.
type PlainText string

// Markup is content stored as block markup produced by the editor.
type Markup string

func (d PlainText) text() string  { return string(d) }
func (d PlainText) isMarkup() bool { return false }
func (d Markup) text() string     { return string(d) }
func (d Markup) isMarkup() bool   { return true }

var blockTags = map[string]struct{}{
	"p": {}, "ul": {}, "ol": {}, "li": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"blockquote": {}, "pre": {}, "div": {}, "table": {},
}

// Classify picks the Document variant for a row whose shape was not
// recorded. Content is Markup when it contains a block-level start tag.
func Classify(raw string) Document {
	if hasBlockTag(unescapeOnce(raw)) {
		return Markup(raw)
	}
	return PlainText(raw)
}

// ParseFormat maps a stored or requested format name to a Document. Unknown
// or empty names fall back to Classify.
func ParseFormat(format, raw string) Document {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "plain", "text":
		return PlainText(raw)
	case "markup", "html":
		return Markup(raw)
	default:
		return Classify(raw)
	}
}

func hasBlockTag(text string) bool {
	if !strings.Contains(text, "<") {
		return false
	}
	z := xhtml.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return false
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			if _, ok := blockTags[string(name)]; ok {
				return true
			}
		}
	}
}

// unescapeOnce undoes one level of HTML escaping when the text shows signs of
// having been escaped twice before it was stored.
func unescapeOnce(text string) string {
	if strings.Contains(text, "&lt;") || strings.Contains(text, "&gt;") || strings.Contains(text, "&amp;lt;") {
		return html.UnescapeString(text)
	}
	return text
}

// Status tells whether a parse produced chips or fell back to raw content.
type Status int

const (
	StatusRendered Status = iota
	StatusDegraded
)

func (s Status) String() string {
	if s == StatusDegraded {
		return "degraded"
	}
	return "rendered"
}

// Result is the outcome of a parse. When Status is StatusDegraded, HTML holds
// the original content unchanged and Err records why.
type Result struct {
	Status Status
	HTML   string
	Err    error
}

// Degraded reports whether the parse fell back to the raw content.
func (r Result) Degraded() bool {
	return r.Status == StatusDegraded
}
