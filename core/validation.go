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

import (
	"fmt"
	"strings"
)

const maxSymbolLength = 10

// NormalizeSymbol trims and upper-cases a ticker symbol and validates it.
//
// Validation rules:
//   - Must not be empty after trimming
//   - At most 10 characters
//   - Only letters, digits, '.' and '-'
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(s) > maxSymbolLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSymbol, s, maxSymbolLength)
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidSymbol, s, r)
		}
	}
	return s, nil
}

// ValidateCollectionName checks that a collection name can be used in storage keys.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCollection)
	}
	if strings.ContainsAny(name, ": \t\n") {
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidCollection, name)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Collection must be a valid name
//   - Offset and Index must not be negative
//
// NOT validated:
//   - Vector (can be empty until embedded)
//   - ID (assigned by storage)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if err := ValidateCollectionName(chunk.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if chunk.Offset < 0 || chunk.Index < 0 {
		return fmt.Errorf("%w: negative position (index %d, offset %d)", ErrInvalidChunk, chunk.Index, chunk.Offset)
	}
	return nil
}
