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

// Package render serializes selected filing sections to bounded markdown.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/filingrag/core"
)

const (
	// DefaultTextLimit is the longest text element emitted verbatim.
	DefaultTextLimit = 1000
	// DefaultTruncateTo is how much of a longer text element is kept.
	DefaultTruncateTo = 800
	// Ellipsis marks a truncated text element.
	Ellipsis = "..."

	maxHeadingMarkers = 6
)

var ErrInvalidLimits = errors.New("truncation length must be positive and no greater than the text limit")

// Renderer turns sections into markdown. Its zero value is not usable; use New.
type Renderer struct {
	textLimit    int
	truncateTo   int
	ignoreTables bool
	logger       *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer) error

// WithTextLimits sets the longest verbatim text element and the length
// longer elements are cut to.
func WithTextLimits(limit, truncateTo int) Option {
	return func(r *Renderer) error {
		if truncateTo < 1 || truncateTo > limit {
			return fmt.Errorf("%w: limit %d, truncate to %d", ErrInvalidLimits, limit, truncateTo)
		}
		r.textLimit = limit
		r.truncateTo = truncateTo
		return nil
	}
}

// WithTables enables or disables table output. Tables are skipped by default.
func WithTables(enabled bool) Option {
	return func(r *Renderer) error {
		r.ignoreTables = !enabled
		return nil
	}
}

// WithLogger sets the logger. A nil logger leaves the default in place.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) error {
		if logger != nil {
			r.logger = logger.With("component", "renderer")
		}
		return nil
	}
}

// New creates a Renderer.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		textLimit:    DefaultTextLimit,
		truncateTo:   DefaultTruncateTo,
		ignoreTables: true,
		logger:       slog.Default().With("component", "renderer"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RenderSection serializes a section's descendants in document order.
// The section's own title is not included.
func (r *Renderer) RenderSection(section *core.Section) (string, error) {
	mode := section.Target.Mode
	if mode == "" {
		mode = core.RenderAll
	}
	withText := mode == core.RenderAll || mode == core.RenderText
	withTables := (mode == core.RenderAll || mode == core.RenderTable) && !r.ignoreTables

	var b strings.Builder
	for _, element := range section.Elements() {
		switch e := element.(type) {
		case *core.TextElement:
			if withText {
				b.WriteString(r.truncate(e.Text))
				b.WriteByte('\n')
			}
		case *core.TitleElement:
			if withText {
				b.WriteString(Heading(e.Level))
				b.WriteByte(' ')
				b.WriteString(e.Text)
				b.WriteByte('\n')
			}
		case *core.TableElement:
			if withTables {
				b.WriteString(r.table(section.Title, e))
			}
		default:
			return "", fmt.Errorf("render %q: %w: %T", section.Title, core.ErrUnknownElement, element)
		}
	}
	return b.String(), nil
}

// RenderDocument renders every section under a top-level heading of its title.
// No sections render to an empty string.
func (r *Renderer) RenderDocument(sections []*core.Section) (string, error) {
	var b strings.Builder
	for _, section := range sections {
		body, err := r.RenderSection(section)
		if err != nil {
			return "", err
		}
		b.WriteString("# ")
		b.WriteString(section.Title)
		b.WriteByte('\n')
		b.WriteString(body)
	}
	return b.String(), nil
}

// Heading returns the markdown heading marker for a zero-based title level.
func Heading(level int) string {
	return strings.Repeat("#", min(max(level, 0)+1, maxHeadingMarkers))
}

func (r *Renderer) truncate(text string) string {
	if utf8.RuneCountInString(text) <= r.textLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:r.truncateTo]) + Ellipsis
}

func (r *Renderer) table(section string, t *core.TableElement) string {
	md, err := TableMarkdown(t.Rows)
	if err == nil {
		return md
	}
	r.logger.Warn("Table serialization failed, using raw markup", "section", section, "err", err)
	if t.Source == "" {
		return ""
	}
	return t.Source + "\n"
}
