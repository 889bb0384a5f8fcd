package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) Node {
	return Node{Type: "text", Text: s}
}

func paragraph(children ...Node) Node {
	return Node{Type: "paragraph", Content: children}
}

func item(children ...Node) Node {
	return Node{Type: "listItem", Content: []Node{paragraph(children...)}}
}

func taskNode(attrs map[string]any) Node {
	return Node{Type: "taskChip", Attrs: attrs, Content: []Node{text("#123: stale label")}}
}

func TestSerializeReferences(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{name: "primary task attr", node: taskNode(map[string]any{"data-task-id": "T1"}), want: "#TASK-T1"},
		{name: "legacy task attr", node: taskNode(map[string]any{"taskId": "T2"}), want: "#TASK-T2"},
		{name: "task class marker", node: taskNode(map[string]any{"class": "chip task-mention", "data-id": "T3"}), want: "#TASK-T3"},
		{name: "task node type", node: Node{Type: "taskMention", Attrs: map[string]any{"id": "T4"}}, want: "#TASK-T4"},
		{name: "primary user attr", node: Node{Type: "span", Attrs: map[string]any{"data-user-id": userA}}, want: "@" + userA},
		{name: "user class marker", node: Node{Type: "span", Attrs: map[string]any{"class": "user-mention", "id": userB}}, want: "@" + userB},
		{name: "user mention node", node: Node{Type: "mention", Attrs: map[string]any{"id": userC, "label": "Cy"}}, want: "@" + userC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Node{Type: "doc", Content: []Node{paragraph(text("see "), tt.node)}}
			assert.Equal(t, "see "+tt.want, Serialize(&doc))
		})
	}
}

func TestSerializeBlocks(t *testing.T) {
	doc := Node{Type: "doc", Content: []Node{
		{Type: "heading", Attrs: map[string]any{"level": 2.0}, Content: []Node{text("Yesterday")}},
		paragraph(text("line one"), Node{Type: "hardBreak"}, text("line two")),
		paragraph(),
		paragraph(text("   ")),
		{Type: "orderedList", Attrs: map[string]any{"start": 5.0}, Content: []Node{
			item(text("first")),
			item(text("second")),
		}},
		{Type: "bulletList", Content: []Node{
			item(text("alpha")),
			item(text("beta")),
		}},
		{Type: "orderedList", Content: []Node{item(text("restart"))}},
	}}

	want := "Yesterday\nline one\nline two\n1. first\n2. second\n- alpha\n- beta\n1. restart"
	assert.Equal(t, want, Serialize(&doc))
}

func TestSerializeCollapsesBlankRuns(t *testing.T) {
	doc := Node{Type: "doc", Content: []Node{
		paragraph(text("a"), Node{Type: "hardBreak"}, Node{Type: "hardBreak"}, Node{Type: "hardBreak"}, Node{Type: "hardBreak"}, text("b")),
	}}
	assert.Equal(t, "a\n\nb", Serialize(&doc))
}

func TestSerializeDoesNotMutateTree(t *testing.T) {
	doc := Node{Type: "doc", Content: []Node{paragraph(taskNode(map[string]any{"data-task-id": "T1"}))}}
	before := doc.Content[0].Content[0].Content[0].Text

	Serialize(&doc)

	assert.Equal(t, before, doc.Content[0].Content[0].Content[0].Text)
	assert.Equal(t, "taskChip", doc.Content[0].Content[0].Type)
}

func TestSerializeNil(t *testing.T) {
	assert.Equal(t, "", Serialize(nil))
}

func TestDecodeNode(t *testing.T) {
	data := []byte(`{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"text","text":"Blocked by "},
		{"type":"taskChip","attrs":{"data-task-id":"` + userA + `"}},
		{"type":"text","text":" ask ","marks":[{"type":"bold"}]},
		{"type":"mention","attrs":{"id":"` + userB + `"}}
	]}]}`)

	doc, err := DecodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, "Blocked by #TASK-"+userA+" ask @"+userB, Serialize(doc))

	_, err = DecodeNode([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestSerializeThenParseKeepsReferences(t *testing.T) {
	taskID := "abcdef12-3456-4789-8abc-def012345678"
	doc := Node{Type: "doc", Content: []Node{
		paragraph(text("Working on "), taskNode(map[string]any{"data-task-id": taskID})),
		{Type: "bulletList", Content: []Node{
			item(text("paired with "), Node{Type: "mention", Attrs: map[string]any{"id": userA}}),
			item(text("wrote docs")),
		}},
	}}

	saved := Serialize(&doc)
	res := newTestParser(&fakeDirectory{}).Parse(context.Background(), saved)
	require.False(t, res.Degraded())

	chips := chipsIn(t, res.HTML)
	require.Len(t, chips, 2)
	assert.Equal(t, "task", chips[0].kind)
	assert.Equal(t, taskID, chips[0].id)
	assert.Equal(t, "user", chips[1].kind)
	assert.Equal(t, userA, chips[1].id)
	assert.Contains(t, res.HTML, "<li>wrote docs</li>")

	// The rendered chips re-enter the editor as spans; saving again must
	// produce the same tokens.
	reloaded := Node{Type: "doc", Content: []Node{
		paragraph(text("Working on "), Node{Type: "span", Attrs: map[string]any{"class": ClassTaskChip, AttrTaskID: chips[0].id}}),
		{Type: "bulletList", Content: []Node{
			item(text("paired with "), Node{Type: "span", Attrs: map[string]any{"class": ClassUserChip, AttrUserID: chips[1].id}}),
			item(text("wrote docs")),
		}},
	}}
	assert.Equal(t, saved, Serialize(&reloaded))
}
