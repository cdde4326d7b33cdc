package parser

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

type blockKind int

const (
	textBlock blockKind = iota
	headingBlock
	boldBlock
	tableBlock
)

// block is a leaf of the visible document: an element without block-level
// descendants, a run of loose text, or a whole table.
type block struct {
	kind  blockKind
	text  string
	style string // distinguishes title styles; empty for text and tables
	rows  [][]string
	raw   string
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"center": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "ul": true,
}

var skipTags = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "title": true,
}

var (
	fontSizePattern   = regexp.MustCompile(`font-size:\s*([0-9.]+\s*[a-z%]*)`)
	fontWeightPattern = regexp.MustCompile(`font-weight:\s*(bold|[6-9]00)`)
)

// collector walks the DOM and emits blocks in document order.
type collector struct {
	blocks   []block
	hasBlock map[*html.Node]bool
}

func collectBlocks(root *html.Node) []block {
	c := &collector{hasBlock: make(map[*html.Node]bool)}
	c.markBlocks(root)
	c.walk(root)
	return c.blocks
}

// markBlocks records, for every node, whether a block-level element sits
// anywhere below it.
func (c *collector) markBlocks(n *html.Node) bool {
	found := false
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if c.markBlocks(child) {
			found = true
		}
		if child.Type == html.ElementNode && blockTags[child.Data] {
			found = true
		}
	}
	c.hasBlock[n] = found
	return found
}

func (c *collector) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := collapseSpace(n.Data); text != "" {
			c.blocks = append(c.blocks, block{kind: textBlock, text: text})
		}
		return
	case html.ElementNode:
		if skipTags[n.Data] || isHidden(n) {
			return
		}
		if n.Data == "table" {
			c.addTable(n)
			return
		}
		if !c.hasBlock[n] {
			c.addLeaf(n)
			return
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(child)
	}
}

func (c *collector) addLeaf(n *html.Node) {
	text := collapseSpace(textContent(n))
	if text == "" {
		return
	}

	b := block{kind: textBlock, text: text}
	if level := headingLevel(n.Data); level > 0 {
		b.kind = headingBlock
		b.style = n.Data
	} else if bold, total := boldWeight(n, false); total > 0 && bold == total {
		b.kind = boldBlock
		b.style = "bold" + fontSize(n)
	}
	c.blocks = append(c.blocks, b)
}

func (c *collector) addTable(n *html.Node) {
	rows := tableRows(n)
	if len(rows) == 0 {
		return
	}
	var raw bytes.Buffer
	if err := html.Render(&raw, n); err != nil {
		raw.Reset()
	}
	c.blocks = append(c.blocks, block{kind: tableBlock, rows: rows, raw: raw.String()})
}

// tableRows extracts the cell text of a table. Columns empty in every row
// are dropped; EDGAR tables use them for spacing.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isHidden(n) {
				return
			}
			if n.Data == "tr" {
				var row []string
				for cell := n.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						row = append(row, collapseSpace(textContent(cell)))
					}
				}
				if !allEmpty(row) {
					rows = append(rows, row)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(table)
	return dropEmptyColumns(rows)
}

func dropEmptyColumns(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	keep := make([]bool, width)
	for _, row := range rows {
		for i, cell := range row {
			if cell != "" {
				keep[i] = true
			}
		}
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		var compact []string
		for i := range width {
			if !keep[i] {
				continue
			}
			if i < len(row) {
				compact = append(compact, row[i])
			} else {
				compact = append(compact, "")
			}
		}
		out = append(out, compact)
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, cell := range cells {
		if cell != "" {
			return false
		}
	}
	return true
}

// boldWeight counts non-space characters below n, and how many of them are bold.
func boldWeight(n *html.Node, inherited bool) (bold, total int) {
	if n.Type == html.TextNode {
		count := len(strings.Join(strings.Fields(n.Data), ""))
		if inherited {
			return count, count
		}
		return 0, count
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "b", "strong":
			inherited = true
		}
		if fontWeightPattern.MatchString(strings.ToLower(attr(n, "style"))) {
			inherited = true
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b, t := boldWeight(child, inherited)
		bold += b
		total += t
	}
	return bold, total
}

// fontSize returns the first inline font size at or below n, or "".
func fontSize(n *html.Node) string {
	if n.Type == html.ElementNode {
		if m := fontSizePattern.FindStringSubmatch(strings.ToLower(attr(n, "style"))); m != nil {
			return ":" + strings.ReplaceAll(m[1], " ", "")
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if size := fontSize(child); size != "" {
			return size
		}
	}
	return ""
}

func isHidden(n *html.Node) bool {
	style := strings.ToLower(strings.ReplaceAll(attr(n, "style"), " ", ""))
	return strings.Contains(style, "display:none")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			if skipTags[n.Data] || isHidden(n) {
				return
			}
			if n.Data == "br" {
				buf.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

// collapseSpace trims text and folds whitespace runs, including
// non-breaking spaces, into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
