// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "strings"

// Element is a semantic unit of a parsed filing.
// The set of implementations is closed: TextElement, TitleElement and TableElement.
type Element interface {
	// Content returns the plain text carried by the element.
	Content() string
	element()
}

// TextElement is a paragraph of body text.
type TextElement struct {
	Text string
}

// TitleElement is a heading. Level is zero-based; lower levels are more prominent.
type TitleElement struct {
	Text  string
	Level int
}

// TableElement is a table reduced to its cell text. Source keeps the original markup.
type TableElement struct {
	Rows   [][]string
	Source string
}

func (e *TextElement) Content() string  { return e.Text }
func (e *TitleElement) Content() string { return e.Text }

func (e *TableElement) Content() string {
	var b strings.Builder
	for i, row := range e.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, " "))
	}
	return b.String()
}

func (*TextElement) element()  {}
func (*TitleElement) element() {}
func (*TableElement) element() {}

var (
	_ Element = (*TextElement)(nil)
	_ Element = (*TitleElement)(nil)
	_ Element = (*TableElement)(nil)
)

// Node is a position in the parse tree.
type Node struct {
	Element  Element
	Children []*Node
}

// Title returns the node's own text, or "" for a node without an element.
func (n *Node) Title() string {
	if n == nil || n.Element == nil {
		return ""
	}
	return n.Element.Content()
}

// Descendants returns every element below n in document (pre-)order.
// The node's own element is not included.
func (n *Node) Descendants() []Element {
	var out []Element
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Element != nil {
				out = append(out, c.Element)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Tree is a parsed filing: a sequence of parts, each holding top-level sections as children.
type Tree struct {
	Parts []*Node
}

// Sections returns the top-level sections of every part in document order.
func (t *Tree) Sections() []*Node {
	if t == nil {
		return nil
	}
	var out []*Node
	for _, part := range t.Parts {
		out = append(out, part.Children...)
	}
	return out
}

// RenderMode selects which element kinds of a section are rendered.
type RenderMode string

const (
	RenderAll   RenderMode = "all"
	RenderText  RenderMode = "text"
	RenderTable RenderMode = "table"
)

// Target is a section title prefix to extract and how to render it.
// Prefix is compared against lower-cased, trimmed titles.
type Target struct {
	Prefix string     `yaml:"prefix" json:"prefix"`
	Mode   RenderMode `yaml:"mode" json:"mode"`
}

// DefaultTargets are the 10-K items extracted when nothing else is configured:
// risk factors in full and market risk disclosures without tables.
func DefaultTargets() []Target {
	return []Target{
		{Prefix: "item 1a", Mode: RenderAll},
		{Prefix: "item 7a", Mode: RenderText},
	}
}

// Section is a top-level subtree whose title matched a Target.
type Section struct {
	Title  string
	Target Target
	Node   *Node
}

// Elements returns the section's descendant elements in document order.
func (s *Section) Elements() []Element {
	return s.Node.Descendants()
}
