package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/filingrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFiling = `<html>
<head><title>10-K</title><style>p { margin: 0 }</style></head>
<body>
<div style="display:none"><span>Item 9Z. Hidden XBRL header</span></div>
<p>UNITED STATES SECURITIES AND EXCHANGE COMMISSION</p>
<table>
  <tr><td>Item 1A.</td><td></td><td>Risk Factors</td><td>12</td></tr>
  <tr><td>Item 7A.</td><td></td><td>Market Risk</td><td>40</td></tr>
</table>
<div><span style="font-weight:700">PART&nbsp;I</span></div>
<div><span style="font-weight:bold">Item 1A.&nbsp;&nbsp;Risk Factors</span></div>
<div><span style="font-weight:700;font-size:10pt">Macroeconomic Risks</span></div>
<p>Adverse economic conditions could <b>materially</b> affect demand.</p>
<div><span style="font-style:italic;font-weight:700;font-size:9pt">Inflation</span></div>
<p>Inflation may increase costs.</p>
<div><span style="font-weight:700;font-size:10pt">Supply Chain Risks</span></div>
<p>Suppliers may fail to deliver.</p>
<div><b>Item 2. Properties</b></div>
<p>The company owns its headquarters.</p>
<div><b>PART II</b></div>
<div><b>Item 7A. Quantitative and Qualitative Disclosures About Market Risk</b></div>
<p>Interest rate risk is limited.</p>
<table>
  <tr><th>Rate change</th><th></th><th>Impact</th></tr>
  <tr><td>+100bp</td><td></td><td>$12</td></tr>
</table>
<script>var x = "Item 8. not a section";</script>
</body>
</html>`

func parseSample(t *testing.T) *core.Tree {
	t.Helper()
	tree, err := Parse(strings.NewReader(sampleFiling))
	require.NoError(t, err)
	return tree
}

func TestParse_PartsAndSections(t *testing.T) {
	tree := parseSample(t)

	// Untitled cover part, Part I, Part II
	require.Len(t, tree.Parts, 3)
	assert.Nil(t, tree.Parts[0].Element)
	assert.Equal(t, "PART I", tree.Parts[1].Title())
	assert.Equal(t, "PART II", tree.Parts[2].Title())

	var titles []string
	for _, section := range tree.Sections() {
		titles = append(titles, section.Title())
	}
	assert.Contains(t, titles, "Item 1A. Risk Factors")
	assert.Contains(t, titles, "Item 2. Properties")
	assert.Contains(t, titles, "Item 7A. Quantitative and Qualitative Disclosures About Market Risk")
	for _, title := range titles {
		assert.NotContains(t, title, "Hidden")
		assert.NotContains(t, title, "Item 8")
	}
}

func TestParse_CoverContentBelongsToUntitledPart(t *testing.T) {
	tree := parseSample(t)

	cover := tree.Parts[0]
	require.Len(t, cover.Children, 2)
	assert.IsType(t, &core.TextElement{}, cover.Children[0].Element)
	assert.IsType(t, &core.TableElement{}, cover.Children[1].Element)
}

func TestParse_TitlesNestByStyle(t *testing.T) {
	tree := parseSample(t)

	riskFactors := tree.Parts[1].Children[0]
	require.Equal(t, "Item 1A. Risk Factors", riskFactors.Title())
	require.Len(t, riskFactors.Children, 2)

	macro := riskFactors.Children[0]
	title, ok := macro.Element.(*core.TitleElement)
	require.True(t, ok)
	assert.Equal(t, "Macroeconomic Risks", title.Text)
	assert.Equal(t, 0, title.Level)

	// Paragraph then the smaller "Inflation" title nest under the first title
	require.Len(t, macro.Children, 2)
	inflation, ok := macro.Children[1].Element.(*core.TitleElement)
	require.True(t, ok)
	assert.Equal(t, "Inflation", inflation.Text)
	assert.Equal(t, 1, inflation.Level)

	supply, ok := riskFactors.Children[1].Element.(*core.TitleElement)
	require.True(t, ok)
	assert.Equal(t, "Supply Chain Risks", supply.Text)
	assert.Equal(t, 0, supply.Level)

	var contents []string
	for _, element := range riskFactors.Descendants() {
		contents = append(contents, element.Content())
	}
	assert.Equal(t, []string{
		"Macroeconomic Risks",
		"Adverse economic conditions could materially affect demand.",
		"Inflation",
		"Inflation may increase costs.",
		"Supply Chain Risks",
		"Suppliers may fail to deliver.",
	}, contents)
}

func TestParse_Tables(t *testing.T) {
	tree := parseSample(t)

	marketRisk := tree.Parts[2].Children[0]
	require.Len(t, marketRisk.Children, 2)
	table, ok := marketRisk.Children[1].Element.(*core.TableElement)
	require.True(t, ok)

	assert.Equal(t, [][]string{{"Rate change", "Impact"}, {"+100bp", "$12"}}, table.Rows)
	assert.True(t, strings.HasPrefix(table.Source, "<table>"))
	assert.Contains(t, table.Source, "+100bp")
}

func TestParse_NoStructure(t *testing.T) {
	tree, err := Parse(strings.NewReader("<p>Just a paragraph.</p>"))
	require.NoError(t, err)
	require.Len(t, tree.Parts, 1)
	require.Len(t, tree.Parts[0].Children, 1)
	assert.Equal(t, "Just a paragraph.", tree.Parts[0].Children[0].Title())
}

func TestParse_LongItemTextIsBody(t *testing.T) {
	long := "Item 1A of this report describes " + strings.Repeat("many risks ", 20)
	tree, err := Parse(strings.NewReader("<p>" + long + "</p>"))
	require.NoError(t, err)
	require.Len(t, tree.Parts, 1)
	require.Len(t, tree.Parts[0].Children, 1)
	assert.IsType(t, &core.TextElement{}, tree.Parts[0].Children[0].Element)
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "   \n\t "} {
		_, err := Parse(strings.NewReader(input))
		var parseErr *core.ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.ErrorIs(t, err, core.ErrEmptyContent)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParse_ReadFailure(t *testing.T) {
	_, err := Parse(failingReader{})
	var parseErr *core.ParseError
	assert.True(t, errors.As(err, &parseErr))
}
