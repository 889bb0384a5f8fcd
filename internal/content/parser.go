package content

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	placeholderOpen  = "\ue000"
	placeholderClose = "\ue001"
)

var (
	placeholderPattern = regexp.MustCompile(placeholderOpen + `(\d+)` + placeholderClose)
	// Content may not contain the placeholder runes, or it could forge chips.
	placeholderRunes = strings.NewReplacer(placeholderOpen, "", placeholderClose, "")
)

// Parser renders persisted content as markup with interactive reference
// chips. It is safe for concurrent use.
type Parser struct {
	dir    Directory
	logger zerolog.Logger
}

// NewParser returns a parser that resolves references through dir. A nil
// dir renders every reference unresolved.
func NewParser(dir Directory, logger zerolog.Logger) *Parser {
	return &Parser{dir: dir, logger: logger}
}

// Parse classifies raw and renders it.
func (p *Parser) Parse(ctx context.Context, raw string) Result {
	return p.ParseDocument(ctx, Classify(raw))
}

// ParseDocument renders doc. It never fails: on any error, including a
// panic, the result is degraded and carries the original text.
func (p *Parser) ParseDocument(ctx context.Context, doc Document) (res Result) {
	raw := doc.text()
	defer func() {
		if r := recover(); r != nil {
			res = p.degrade(raw, fmt.Errorf("render panic: %v", r))
		}
	}()

	text := placeholderRunes.Replace(unescapeOnce(raw))
	var tokens []Token
	if doc.isMarkup() {
		tokens = TokenizeMarkup(text)
	} else {
		tokens = Tokenize(text)
	}

	refs, err := resolve(ctx, p.dir, tokens)
	if err != nil {
		return p.degrade(raw, err)
	}

	chips := make([]string, len(tokens))
	var skeleton strings.Builder
	last := 0
	for i, tok := range tokens {
		skeleton.WriteString(text[last:tok.Start])
		skeleton.WriteString(placeholderOpen + strconv.Itoa(i) + placeholderClose)
		chips[i] = renderChip(tok, refs)
		last = tok.End
	}
	skeleton.WriteString(text[last:])

	var markup string
	if doc.isMarkup() {
		markup = normalizeMarkup(skeleton.String())
	} else {
		markup = plainToBlocks(skeleton.String())
	}

	markup = placeholderPattern.ReplaceAllStringFunc(markup, func(match string) string {
		n, err := strconv.Atoi(match[len(placeholderOpen) : len(match)-len(placeholderClose)])
		if err != nil || n < 0 || n >= len(chips) {
			return match
		}
		return chips[n]
	})
	return Result{Status: StatusRendered, HTML: markup}
}

func (p *Parser) degrade(raw string, err error) Result {
	p.logger.Warn().Err(err).Int("content_len", len(raw)).Msg("content: rendering raw content")
	return Result{Status: StatusDegraded, HTML: raw, Err: err}
}
