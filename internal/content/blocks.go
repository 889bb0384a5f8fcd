package content

import (
	"html"
	"regexp"
	"strings"
)

type listType int

const (
	listNone listType = iota
	listOrdered
	listUnordered
)

var (
	inlineOrderedMarker = regexp.MustCompile(`(\S)[ \t]+(\d+[.)] )`)
	inlineBulletMarker  = regexp.MustCompile(`(\S)[ \t]+([-*•→] )`)
	lineSplit           = regexp.MustCompile(`(?i)\r?\n|<br\s*/?>`)
	orderedLine         = regexp.MustCompile(`^(\d+)[.)]\s+(.+)$`)
	bulletLine          = regexp.MustCompile(`^[-*•→]\s+(.+)$`)
	checkboxLine        = regexp.MustCompile(`^\[[ xX]?\]\s+(.+)$`)

	emptyParagraph = regexp.MustCompile(`(?i)<p>\s*</p>`)
	breakRun       = regexp.MustCompile(`(?i)(?:<br\s*/?>\s*){3,}`)
)

// plainToBlocks converts plain text with ad-hoc list markers to block markup.
// List items are numbered by position; the digits in the source are dropped,
// and checkbox state is not kept. Text is HTML-escaped.
func plainToBlocks(text string) string {
	text = inlineOrderedMarker.ReplaceAllString(text, "$1\n$2")
	text = inlineBulletMarker.ReplaceAllString(text, "$1\n$2")

	var out strings.Builder
	open := listNone
	closeList := func() {
		switch open {
		case listOrdered:
			out.WriteString("</ol>")
		case listUnordered:
			out.WriteString("</ul>")
		}
		open = listNone
	}
	openList := func(kind listType) {
		if open == kind {
			return
		}
		closeList()
		if kind == listOrdered {
			out.WriteString("<ol>")
		} else {
			out.WriteString("<ul>")
		}
		open = kind
	}

	for _, raw := range lineSplit.Split(text, -1) {
		line := strings.TrimSpace(raw)
		if line == "" {
			closeList()
			continue
		}
		if m := orderedLine.FindStringSubmatch(line); m != nil {
			openList(listOrdered)
			out.WriteString("<li>" + html.EscapeString(m[2]) + "</li>")
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			openList(listUnordered)
			out.WriteString("<li>" + html.EscapeString(m[1]) + "</li>")
			continue
		}
		if m := checkboxLine.FindStringSubmatch(line); m != nil {
			openList(listUnordered)
			out.WriteString("<li>" + html.EscapeString(m[1]) + "</li>")
			continue
		}
		closeList()
		out.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	closeList()
	return out.String()
}

// normalizeMarkup keeps empty lines visible and stops blank space from
// growing across edit cycles.
func normalizeMarkup(markup string) string {
	markup = emptyParagraph.ReplaceAllString(markup, "<p><br></p>")
	return breakRun.ReplaceAllString(markup, "<br><br>")
}
