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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrFilingNotFound indicates the remote repository has no such filing.
	ErrFilingNotFound = errors.New("filing not found")

	// ErrInvalidSymbol indicates a ticker symbol failed validation.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrEmptyContent indicates a text payload is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidCollection indicates a collection name failed validation.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrUnknownElement indicates an element kind the renderer does not handle.
	ErrUnknownElement = errors.New("unknown element kind")
)

// FetchError reports a failure to obtain a filing from the remote repository.
// No cache entry exists when it is returned.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError reports a failed write to the filing cache, the markdown output
// or an index collection. Path names the file or collection. Partial cache
// files are already removed.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ParseError reports markup that could not be turned into a tree.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse filing: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding failure during ingestion.
// Stored counts the chunks persisted before the failure; they are not rolled back.
type EmbeddingError struct {
	Collection string
	Stored     int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed chunks for %s (stored %d before failure): %v", e.Collection, e.Stored, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// QueryError reports a failed retrieval. Callers that prefer degraded
// results treat it as an empty result set.
type QueryError struct {
	Collection string
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Collection, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
