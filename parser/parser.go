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

// Package parser turns filing markup into a semantic tree of parts and
// sections, and selects the sections matching configured title prefixes.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"

	"github.com/poiesic/filingrag/core"
	"golang.org/x/net/html"
)

// maxTitleLength bounds the text of part, item and bold titles.
// Longer blocks are body text even when they open with "Item 1A".
const maxTitleLength = 120

var (
	partPattern = regexp.MustCompile(`(?i)^part\s+[ivx]+\b`)
	itemPattern = regexp.MustCompile(`(?i)^item\s+\d+[a-z]?\b`)
)

// Parse reads filing markup and builds its semantic tree.
//
// Top-level parts open at "Part I"-style titles and sections at "Item 1A"-style
// titles. Content before the first part is held by an untitled part. Inside a
// section, headings and short bold paragraphs become titles whose level follows
// the order in which each title style first appears; deeper titles nest under
// shallower ones.
func Parse(r io.Reader) (*core.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &core.ParseError{Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &core.ParseError{Err: core.ErrEmptyContent}
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &core.ParseError{Err: fmt.Errorf("parse html: %w", err)}
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	b := newTreeBuilder()
	for _, blk := range collectBlocks(root) {
		b.add(blk)
	}
	return b.tree, nil
}

type frame struct {
	node  *core.Node
	level int
}

type treeBuilder struct {
	tree   *core.Tree
	stack  []frame
	levels map[string]int
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{
		tree:   &core.Tree{},
		levels: make(map[string]int),
	}
}

func (b *treeBuilder) add(blk block) {
	if blk.kind != tableBlock && utf8.RuneCountInString(blk.text) <= maxTitleLength {
		switch {
		case partPattern.MatchString(blk.text):
			b.openPart(&core.TitleElement{Text: blk.text})
			return
		case itemPattern.MatchString(blk.text):
			b.openSection(&core.TitleElement{Text: blk.text})
			return
		}
	}

	switch blk.kind {
	case headingBlock, boldBlock:
		if blk.kind == headingBlock || utf8.RuneCountInString(blk.text) <= maxTitleLength {
			b.addTitle(&core.TitleElement{Text: blk.text, Level: b.level(blk.style)})
			return
		}
		b.top().Children = append(b.top().Children, &core.Node{Element: &core.TextElement{Text: blk.text}})
	case tableBlock:
		b.top().Children = append(b.top().Children, &core.Node{Element: &core.TableElement{Rows: blk.rows, Source: blk.raw}})
	default:
		b.top().Children = append(b.top().Children, &core.Node{Element: &core.TextElement{Text: blk.text}})
	}
}

func (b *treeBuilder) openPart(title core.Element) {
	part := &core.Node{Element: title}
	b.tree.Parts = append(b.tree.Parts, part)
	b.stack = []frame{{node: part, level: -1}}
}

func (b *treeBuilder) openSection(title *core.TitleElement) {
	part := b.part()
	section := &core.Node{Element: title}
	part.Children = append(part.Children, section)
	b.stack = []frame{{node: section, level: -1}}
}

func (b *treeBuilder) addTitle(title *core.TitleElement) {
	b.top()
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= title.Level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	node := &core.Node{Element: title}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, frame{node: node, level: title.Level})
}

// part returns the current part, opening an untitled one if none exists.
func (b *treeBuilder) part() *core.Node {
	if len(b.tree.Parts) == 0 {
		b.openPart(nil)
	}
	return b.tree.Parts[len(b.tree.Parts)-1]
}

// top returns the node that receives the next element.
func (b *treeBuilder) top() *core.Node {
	if len(b.stack) == 0 {
		b.part()
	}
	return b.stack[len(b.stack)-1].node
}

// level maps a title style to its level, assigning levels in order of first use.
func (b *treeBuilder) level(style string) int {
	if level, ok := b.levels[style]; ok {
		return level
	}
	level := len(b.levels)
	b.levels[style] = level
	return level
}
