package content

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	xhtml "golang.org/x/net/html"

	"huddle/api/internal/shortid"
)

type fakeDirectory struct {
	mu    sync.Mutex
	tasks map[string]TaskRecord
	users map[string]UserRecord

	tasksFn func(context.Context, []string) ([]TaskRecord, error)
	usersFn func(context.Context, []string) ([]UserRecord, error)

	taskCalls   int
	userCalls   int
	prefixCalls int
}

func (f *fakeDirectory) TasksByIDs(ctx context.Context, ids []string) ([]TaskRecord, error) {
	f.mu.Lock()
	f.taskCalls++
	f.mu.Unlock()
	if f.tasksFn != nil {
		return f.tasksFn(ctx, ids)
	}
	var out []TaskRecord
	for _, id := range ids {
		if rec, ok := f.tasks[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDirectory) UsersByIDs(ctx context.Context, ids []string) ([]UserRecord, error) {
	f.mu.Lock()
	f.userCalls++
	f.mu.Unlock()
	if f.usersFn != nil {
		return f.usersFn(ctx, ids)
	}
	var out []UserRecord
	for _, id := range ids {
		if rec, ok := f.users[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeDirectory) TasksByPrefix(_ context.Context, prefixes []string) ([]TaskRecord, error) {
	f.mu.Lock()
	f.prefixCalls++
	f.mu.Unlock()
	ids := make([]string, 0, len(f.tasks))
	for id := range f.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []TaskRecord
	for _, prefix := range prefixes {
		for _, id := range ids {
			if shortid.Prefix(id) == prefix {
				out = append(out, f.tasks[id])
				break
			}
		}
	}
	return out, nil
}

func newTestParser(dir Directory) *Parser {
	return NewParser(dir, zerolog.Nop())
}

type chip struct {
	kind  string
	id    string
	label string
}

// chipsIn parses markup and returns every task or user chip in document order.
func chipsIn(t *testing.T, markup string) []chip {
	t.Helper()
	root, err := xhtml.Parse(strings.NewReader(markup))
	require.NoError(t, err)

	var chips []chip
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "span" {
			for _, attr := range n.Attr {
				switch attr.Key {
				case AttrTaskID:
					chips = append(chips, chip{kind: "task", id: attr.Val, label: textOf(n)})
					return
				case AttrUserID:
					chips = append(chips, chip{kind: "user", id: attr.Val, label: textOf(n)})
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return chips
}

func textOf(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func hasElement(t *testing.T, markup, tag string) bool {
	t.Helper()
	root, err := xhtml.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	found := false
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == tag {
			found = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}
