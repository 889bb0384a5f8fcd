package search

import (
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

var (
	spaceRun = regexp.MustCompile(`[ \t]+`)
	blankRun = regexp.MustCompile(`\n{2,}`)
)

// TextFromMarkup reduces rendered markup to the text a reader sees. Chips
// contribute their labels, so an indexed report matches on task titles and
// user names rather than raw ids. Block boundaries become newlines and
// initial badges are skipped.
func TextFromMarkup(markup string) string {
	var b strings.Builder
	inBadge := false
	z := xhtml.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return tidy(b.String())
		case xhtml.TextToken:
			if !inBadge {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "span" {
				if tt == xhtml.EndTagToken {
					inBadge = false
				} else if hasAttr && isBadge(z) {
					inBadge = true
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

var blockTags = map[string]bool{
	"p": true, "li": true, "br": true, "div": true, "blockquote": true, "pre": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func isBadge(z *xhtml.Tokenizer) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "class" && strings.Contains(" "+string(val)+" ", " user-chip-initial ") {
			return true
		}
		if !more {
			return false
		}
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankRun.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}
