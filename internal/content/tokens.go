package content

import (
	"regexp"
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"
)

// TokenKind identifies which inline encoding a reference was written in.
type TokenKind int

const (
	TokenHashTask TokenKind = iota + 1
	TokenBracketTask
	TokenSpanTask
	TokenMention
	TokenSpanUser
)

func (k TokenKind) String() string {
	switch k {
	case TokenHashTask:
		return "hash-task"
	case TokenBracketTask:
		return "bracket-task"
	case TokenSpanTask:
		return "span-task"
	case TokenMention:
		return "mention"
	case TokenSpanUser:
		return "span-user"
	default:
		return "unknown"
	}
}

// IsTask reports whether the token refers to a task.
func (k TokenKind) IsTask() bool {
	return k == TokenHashTask || k == TokenBracketTask || k == TokenSpanTask
}

// Token is one reference found in content. Start and End are byte offsets
// into the scanned text; Title is only set for bracket tags.
type Token struct {
	Kind  TokenKind
	Start int
	End   int
	ID    string
	Title string
	Raw   string
}

var (
	hashTaskPattern    = regexp.MustCompile(`#TASK-([A-Za-z0-9]+(?:-[A-Za-z0-9]+)*)`)
	bracketTaskPattern = regexp.MustCompile(`\[TASK:([^|\]\s]+)\|([^\]]*)\]`)
	mentionPattern     = regexp.MustCompile(`@([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)
	spanTagPattern     = regexp.MustCompile(`(?i)<span\b[^>]*>|</span\s*>`)

	leadingHashTask = regexp.MustCompile(`^` + hashTaskPattern.String())
	leadingMention  = regexp.MustCompile(`^` + mentionPattern.String())
)

// Tokenize returns every reference in text ordered by position. Matches never
// overlap: the earliest match wins and ties go to the longer match, so a
// mention inside a leaked editor span is consumed by the span.
func Tokenize(text string) []Token {
	return accept(candidates(text))
}

// TokenizeMarkup is Tokenize for block markup. References written inside a
// tag, such as in an attribute value or a comment, are ignored; leaked chip
// spans still count since they start at their own tag.
func TokenizeMarkup(text string) []Token {
	tags := tagRanges(text)
	all := candidates(text)
	kept := all[:0]
	for _, tok := range all {
		if !insideTag(tags, tok.Start) {
			kept = append(kept, tok)
		}
	}
	return accept(kept)
}

func candidates(text string) []Token {
	var tokens []Token

	for _, m := range hashTaskPattern.FindAllStringSubmatchIndex(text, -1) {
		tokens = append(tokens, Token{
			Kind:  TokenHashTask,
			Start: m[0],
			End:   m[1],
			ID:    text[m[2]:m[3]],
			Raw:   text[m[0]:m[1]],
		})
	}
	for _, m := range bracketTaskPattern.FindAllStringSubmatchIndex(text, -1) {
		tokens = append(tokens, Token{
			Kind:  TokenBracketTask,
			Start: m[0],
			End:   m[1],
			ID:    text[m[2]:m[3]],
			Title: strings.TrimSpace(text[m[4]:m[5]]),
			Raw:   text[m[0]:m[1]],
		})
	}
	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		tokens = append(tokens, Token{
			Kind:  TokenMention,
			Start: m[0],
			End:   m[1],
			ID:    text[m[2]:m[3]],
			Raw:   text[m[0]:m[1]],
		})
	}
	tokens = append(tokens, leakedSpans(text)...)
	return tokens
}

// accept orders tokens by position and drops overlaps.
func accept(tokens []Token) []Token {
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Start != tokens[j].Start {
			return tokens[i].Start < tokens[j].Start
		}
		return tokens[i].End > tokens[j].End
	})

	accepted := tokens[:0]
	end := 0
	for _, tok := range tokens {
		if tok.Start < end {
			continue
		}
		accepted = append(accepted, tok)
		end = tok.End
	}
	return accepted
}

// leakedSpans finds editor chip spans that were stored as markup. A span runs
// to its matching close tag; unrelated spans are skipped but their contents
// are still scanned.
func leakedSpans(text string) []Token {
	tags := spanTagPattern.FindAllStringIndex(text, -1)
	var tokens []Token
	for i := 0; i < len(tags); i++ {
		open := tags[i]
		tag := text[open[0]:open[1]]
		if isCloseTag(tag) {
			continue
		}
		kind, id := referenceFromAttrs(tagAttrs(tag))
		if kind == refNone {
			continue
		}

		end := open[1]
		depth := 1
		j := i + 1
		for ; j < len(tags) && depth > 0; j++ {
			if isCloseTag(text[tags[j][0]:tags[j][1]]) {
				depth--
			} else {
				depth++
			}
			if depth == 0 {
				end = tags[j][1]
			}
		}
		if depth == 0 {
			i = j - 1
		} else {
			end += trailingReference(text[end:], kind, id)
		}

		tokKind := TokenSpanTask
		if kind == refUser {
			tokKind = TokenSpanUser
		}
		tokens = append(tokens, Token{
			Kind:  tokKind,
			Start: open[0],
			End:   end,
			ID:    id,
			Raw:   text[open[0]:end],
		})
	}
	return tokens
}

// trailingReference returns the length of a hash or mention reference to id
// at the start of rest, or 0. An unclosed chip span claims the reference it
// wraps so it is not rendered twice.
func trailingReference(rest string, kind refKind, id string) int {
	pattern := leadingHashTask
	if kind == refUser {
		pattern = leadingMention
	}
	m := pattern.FindStringSubmatchIndex(rest)
	if m == nil || !strings.EqualFold(rest[m[2]:m[3]], id) {
		return 0
	}
	return m[1]
}

// tagRanges returns the byte ranges of everything in text that is not
// character data: tags, comments and doctypes.
func tagRanges(text string) [][2]int {
	z := xhtml.NewTokenizer(strings.NewReader(text))
	var ranges [][2]int
	pos := 0
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			return ranges
		}
		n := len(z.Raw())
		if tt != xhtml.TextToken {
			ranges = append(ranges, [2]int{pos, pos + n})
		}
		pos += n
	}
}

// insideTag reports whether offset falls after the first byte of one of the
// sorted ranges.
func insideTag(ranges [][2]int, offset int) bool {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i][1] > offset })
	return i < len(ranges) && ranges[i][0] < offset
}

func isCloseTag(tag string) bool {
	return strings.HasPrefix(tag, "</")
}

func tagAttrs(tag string) map[string]string {
	z := xhtml.NewTokenizer(strings.NewReader(tag))
	if tt := z.Next(); tt != xhtml.StartTagToken && tt != xhtml.SelfClosingTagToken {
		return nil
	}
	tok := z.Token()
	attrs := make(map[string]string, len(tok.Attr))
	for _, attr := range tok.Attr {
		attrs[strings.ToLower(attr.Key)] = attr.Val
	}
	return attrs
}
