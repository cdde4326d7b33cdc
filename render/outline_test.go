package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutline(t *testing.T) {
	md := "# Item 1A. Risk Factors\nRisks.\n## Macro *economic* risks\nText.\n# Item 7A. Market Risk\nRates.\n"

	headings := Outline(md)
	require.Len(t, headings, 3)
	assert.Equal(t, OutlineHeading{Level: 1, Text: "Item 1A. Risk Factors"}, headings[0])
	assert.Equal(t, OutlineHeading{Level: 2, Text: "Macro economic risks"}, headings[1])
	assert.Equal(t, OutlineHeading{Level: 1, Text: "Item 7A. Market Risk"}, headings[2])
}

func TestSectionLabels(t *testing.T) {
	md := "# Item 1A. Risk Factors\n## Sub\n# Item 7A. Market Risk\n"
	assert.Equal(t, "Item 1A. Risk Factors, Item 7A. Market Risk", SectionLabels(md))
	assert.Empty(t, SectionLabels("no headings here"))
}

func TestTableMarkdown(t *testing.T) {
	md, err := TableMarkdown([][]string{{"a", "b|c"}, {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "| a | b\\|c |\n| --- | --- |\n| 1 |  |\n", md)

	_, err = TableMarkdown(nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}
