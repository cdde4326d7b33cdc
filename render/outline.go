package render

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// OutlineHeading is a heading found in rendered markdown.
type OutlineHeading struct {
	Level int
	Text  string
}

// Outline lists the headings of a markdown document in order.
func Outline(markdown string) []OutlineHeading {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []OutlineHeading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		headings = append(headings, OutlineHeading{
			Level: heading.Level,
			Text:  strings.TrimSpace(inlineText(heading, src)),
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// SectionLabels joins the top-level headings of a rendered document,
// e.g. "Item 1A. Risk Factors, Item 7A. Market Risk".
func SectionLabels(markdown string) string {
	var labels []string
	for _, h := range Outline(markdown) {
		if h.Level == 1 && h.Text != "" {
			labels = append(labels, h.Text)
		}
	}
	return strings.Join(labels, ", ")
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteString(inlineText(c, src))
	}
	return b.String()
}
