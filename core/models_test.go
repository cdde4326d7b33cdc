package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, DocumentID("AAPL", FormType10K), DocumentID("AAPL", FormType10K))
	assert.NotEqual(t, DocumentID("AAPL", FormType10K), DocumentID("MSFT", FormType10K))
}

func TestDocumentState_String(t *testing.T) {
	assert.Equal(t, "not_fetched", StateNotFetched.String())
	assert.Equal(t, "cached", StateCached.String())
	assert.Equal(t, "ingested", StateIngested.String())
	assert.Equal(t, "unknown", DocumentState(42).String())
}

func TestNode_Descendants(t *testing.T) {
	section := &Node{
		Element: &TitleElement{Text: "Item 1A. Risk Factors", Level: 1},
		Children: []*Node{
			{Element: &TextElement{Text: "intro"}},
			{
				Element: &TitleElement{Text: "Market", Level: 2},
				Children: []*Node{
					{Element: &TextElement{Text: "market text"}},
					{Element: &TableElement{Rows: [][]string{{"a", "b"}}}},
				},
			},
			{Element: &TextElement{Text: "closing"}},
		},
	}

	elems := section.Descendants()
	require.Len(t, elems, 5)

	var texts []string
	for _, e := range elems {
		texts = append(texts, e.Content())
	}
	assert.Equal(t, []string{"intro", "Market", "market text", "a b", "closing"}, texts)
	assert.Equal(t, "Item 1A. Risk Factors", section.Title())
}

func TestNode_NilSafety(t *testing.T) {
	var n *Node
	assert.Empty(t, n.Descendants())
	assert.Equal(t, "", n.Title())
}

func TestTree_Sections(t *testing.T) {
	tree := &Tree{Parts: []*Node{
		{
			Element:  &TitleElement{Text: "Part I"},
			Children: []*Node{{Element: &TitleElement{Text: "Item 1"}}, {Element: &TitleElement{Text: "Item 1A"}}},
		},
		{
			Element:  &TitleElement{Text: "Part II"},
			Children: []*Node{{Element: &TitleElement{Text: "Item 7"}}},
		},
	}}

	sections := tree.Sections()
	require.Len(t, sections, 3)
	assert.Equal(t, "Item 1", sections[0].Title())
	assert.Equal(t, "Item 1A", sections[1].Title())
	assert.Equal(t, "Item 7", sections[2].Title())
}

func TestTableElement_Content(t *testing.T) {
	tbl := &TableElement{Rows: [][]string{{"Year", "Revenue"}, {"2024", "$10"}}}
	assert.Equal(t, "Year Revenue\n2024 $10", tbl.Content())
}
