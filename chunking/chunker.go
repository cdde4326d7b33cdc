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

// Package chunking splits rendered text into bounded, possibly overlapping
// pieces. Sizes and offsets are measured in characters (runes).
package chunking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Strategy selects how text is cut into pieces.
type Strategy string

const (
	// Fixed cuts windows of exactly Size characters, each starting Overlap
	// characters before the end of the previous one.
	Fixed Strategy = "fixed"
	// Recursive cuts at the coarsest separator that yields pieces within the
	// window and merges them back up to the window size.
	Recursive Strategy = "recursive"
	// Hybrid cuts at markdown headings first and chunks each segment recursively.
	Hybrid Strategy = "hybrid"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var (
	ErrInvalidSize     = errors.New("chunk size must be positive")
	ErrInvalidOverlap  = errors.New("chunk overlap must be non-negative and smaller than the chunk size")
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
	ErrNotContiguous   = errors.New("pieces are not contiguous")
)

// ParseStrategy maps a strategy name to a Strategy. Matching ignores case.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case Fixed, Recursive, Hybrid:
		return s, nil
	case "":
		return Recursive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Config controls chunking behavior.
type Config struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
	Size     int      `yaml:"size" json:"size"`       // Window size in characters.
	Overlap  int      `yaml:"overlap" json:"overlap"` // Characters shared by consecutive pieces.
}

// DefaultConfig returns the recursive strategy with a 1000 character window
// and 200 characters of overlap.
func DefaultConfig() Config {
	return Config{
		Strategy: Recursive,
		Size:     DefaultSize,
		Overlap:  DefaultOverlap,
	}
}

// Validate checks the window parameters and the strategy name.
func (c Config) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d, size %d", ErrInvalidOverlap, c.Overlap, c.Size)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

// Piece is a substring of the source text starting at Offset characters.
type Piece struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Len returns the length of the piece in characters.
func (p Piece) Len() int {
	return utf8.RuneCountInString(p.Text)
}

// End returns the offset just past the piece.
func (p Piece) End() int {
	return p.Offset + p.Len()
}

// Chunker splits text according to a validated Config.
type Chunker struct {
	config Config
}

// New creates a Chunker. An empty strategy defaults to Recursive.
func New(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Strategy, _ = ParseStrategy(string(config.Strategy))
	return &Chunker{config: config}, nil
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Split cuts text into ordered pieces. No piece exceeds the window size and
// consecutive pieces either overlap or abut, so Reconstruct returns text.
func (c *Chunker) Split(text string) []Piece {
	if text == "" {
		return nil
	}
	runes := []rune(text)

	var spans []span
	switch c.config.Strategy {
	case Fixed:
		spans = fixedSpans(0, len(runes), c.config.Size, c.config.Overlap)
	case Hybrid:
		for _, segment := range headingSegments(runes) {
			spans = append(spans, recursiveSpans(runes, segment, c.config.Size, c.config.Overlap)...)
		}
	default:
		spans = recursiveSpans(runes, span{0, len(runes)}, c.config.Size, c.config.Overlap)
	}

	pieces := make([]Piece, len(spans))
	for i, s := range spans {
		pieces[i] = Piece{Text: string(runes[s.start:s.end]), Offset: s.start}
	}
	return pieces
}

// Reconstruct joins pieces produced by Split, dropping overlapping prefixes.
func Reconstruct(pieces []Piece) (string, error) {
	var (
		b   strings.Builder
		end int
	)
	for i, piece := range pieces {
		if i == 0 {
			if piece.Offset != 0 {
				return "", fmt.Errorf("%w: first piece starts at %d", ErrNotContiguous, piece.Offset)
			}
		} else if piece.Offset > end || piece.Offset < pieces[i-1].Offset {
			return "", fmt.Errorf("%w: piece %d starts at %d, previous ends at %d", ErrNotContiguous, i, piece.Offset, end)
		}

		runes := []rune(piece.Text)
		skip := end - piece.Offset
		if skip < len(runes) {
			b.WriteString(string(runes[skip:]))
			end = piece.Offset + len(runes)
		}
	}
	return b.String(), nil
}

// span is a half-open range of rune offsets.
type span struct {
	start, end int
}

func fixedSpans(start, end, size, overlap int) []span {
	var spans []span
	for start < end {
		stop := min(start+size, end)
		spans = append(spans, span{start, stop})
		if stop == end {
			break
		}
		start = stop - overlap
	}
	return spans
}
