package parser

import (
	"testing"

	"github.com/poiesic/filingrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titled(text string, children ...*core.Node) *core.Node {
	return &core.Node{Element: &core.TitleElement{Text: text}, Children: children}
}

func TestSelectSections_DocumentOrder(t *testing.T) {
	tree := &core.Tree{Parts: []*core.Node{
		titled("Part I",
			titled("Item 1A. Risk Factors"),
			titled("Item 2. Properties"),
			titled("Item 7A. Market Risk"),
		),
	}}
	// Target order is the reverse of document order
	targets := []core.Target{
		{Prefix: "item 7a", Mode: core.RenderText},
		{Prefix: "item 1a", Mode: core.RenderAll},
	}

	sections := SelectSections(tree, targets)
	require.Len(t, sections, 2)
	assert.Equal(t, "Item 1A. Risk Factors", sections[0].Title)
	assert.Equal(t, core.RenderAll, sections[0].Target.Mode)
	assert.Equal(t, "Item 7A. Market Risk", sections[1].Title)
	assert.Equal(t, core.RenderText, sections[1].Target.Mode)
}

func TestSelectSections_Normalization(t *testing.T) {
	tree := &core.Tree{Parts: []*core.Node{
		titled("", titled("   ITEM 1A.  RISK FACTORS  ")),
	}}

	sections := SelectSections(tree, []core.Target{{Prefix: " Item 1A "}})
	require.Len(t, sections, 1)
	assert.Equal(t, "ITEM 1A.  RISK FACTORS", sections[0].Title)
	assert.Equal(t, core.RenderAll, sections[0].Target.Mode)
}

func TestSelectSections_KeepsDuplicates(t *testing.T) {
	tree := &core.Tree{Parts: []*core.Node{
		titled("Part I", titled("Item 1A. Risk Factors")),
		titled("Part II", titled("Item 1A. Risk Factors (continued)")),
	}}

	sections := SelectSections(tree, core.DefaultTargets())
	require.Len(t, sections, 2)
	assert.NotSame(t, sections[0].Node, sections[1].Node)
}

func TestSelectSections_PrefixIsNotSubstring(t *testing.T) {
	tree := &core.Tree{Parts: []*core.Node{
		titled("Part I",
			titled("Item 1. Business"),
			titled("See Item 1A for risks"),
			titled("Item 10. Directors"),
		),
	}}

	sections := SelectSections(tree, []core.Target{{Prefix: "item 1a"}})
	assert.Empty(t, sections)

	// "item 1" is a prefix of "item 10" as well
	sections = SelectSections(tree, []core.Target{{Prefix: "item 1"}})
	assert.Len(t, sections, 2)
}

func TestSelectSections_IgnoresUntitledNodesAndEmptyPrefixes(t *testing.T) {
	tree := &core.Tree{Parts: []*core.Node{{
		Children: []*core.Node{
			{Element: &core.TextElement{Text: "Item 1A. mentioned in running text"}},
			{Element: &core.TableElement{Rows: [][]string{{"Item 1A.", "Risk Factors"}}}},
			titled("Item 1A. Risk Factors"),
		},
	}}}

	sections := SelectSections(tree, []core.Target{{Prefix: ""}, {Prefix: "item 1a"}})
	require.Len(t, sections, 1)
	assert.Equal(t, "Item 1A. Risk Factors", sections[0].Title)
	assert.Equal(t, "item 1a", sections[0].Target.Prefix)
}

func TestSelectSections_ParsedFiling(t *testing.T) {
	tree := parseSample(t)

	sections := SelectSections(tree, core.DefaultTargets())
	require.Len(t, sections, 2)
	assert.Equal(t, "Item 1A. Risk Factors", sections[0].Title)
	assert.Len(t, sections[0].Elements(), 6)
	assert.Equal(t, "Item 7A. Quantitative and Qualitative Disclosures About Market Risk", sections[1].Title)
}
