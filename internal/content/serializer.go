package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Node is one node of the editor's document tree, in the JSON shape the
// editor emits.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting on a text node. Marks do not survive
// serialization.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// DecodeNode parses an editor document from JSON.
func DecodeNode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode editor document: %w", err)
	}
	return &node, nil
}

var newlineRun = regexp.MustCompile(`\n{3,}`)

// Serialize flattens an editor tree to the persisted plain-text form. Task
// references become "#TASK-<id>", user references "@<id>", lists become
// "N. item" or "- item" lines and empty paragraphs are dropped. The tree is
// not modified.
func Serialize(doc *Node) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, doc)
	out := newlineRun.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func writeNode(b *strings.Builder, n *Node) {
	if kind, id := nodeReference(n); kind != refNone {
		if kind == refTask {
			b.WriteString("#TASK-" + id)
		} else {
			b.WriteString("@" + id)
		}
		return
	}

	switch n.Type {
	case "text":
		b.WriteString(n.Text)
	case "hardBreak", "br":
		b.WriteByte('\n')
	case "orderedList", "ol":
		for i := range n.Content {
			b.WriteString(strconv.Itoa(i+1) + ". " + itemText(&n.Content[i]) + "\n")
		}
	case "bulletList", "taskList", "ul":
		for i := range n.Content {
			b.WriteString("- " + itemText(&n.Content[i]) + "\n")
		}
	case "paragraph", "heading", "codeBlock", "p":
		text := childrenText(n)
		if strings.TrimSpace(text) == "" {
			return
		}
		b.WriteString(text)
		b.WriteByte('\n')
	default:
		writeChildren(b, n)
	}
}

func writeChildren(b *strings.Builder, n *Node) {
	for i := range n.Content {
		writeNode(b, &n.Content[i])
	}
}

func childrenText(n *Node) string {
	var b strings.Builder
	writeChildren(&b, n)
	return b.String()
}

func itemText(item *Node) string {
	return strings.TrimSpace(childrenText(item))
}

// nodeReference reports whether n is an inline task or user reference.
func nodeReference(n *Node) (refKind, string) {
	if len(n.Attrs) == 0 {
		return refNone, ""
	}
	attrs := make(map[string]string, len(n.Attrs))
	for key, value := range n.Attrs {
		if s, ok := value.(string); ok {
			attrs[strings.ToLower(key)] = s
		}
	}
	if kind, id := referenceFromAttrs(attrs); kind != refNone {
		return kind, id
	}

	id := strings.TrimSpace(attrs[attrID])
	if id == "" {
		return refNone, ""
	}
	switch n.Type {
	case "taskMention", "taskReference":
		return refTask, id
	case "mention", "userMention":
		return refUser, id
	}
	return refNone, ""
}
