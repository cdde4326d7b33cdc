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

package filing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
)

const (
	DefaultExtension  = "html"
	DefaultCollection = "sec10k_chunks"
)

// Store is a disk cache of raw filings keyed by symbol. It decides between
// fetching and reuse, and owns the lifecycle state of each document.
type Store struct {
	root       string
	ext        string
	formType   string
	collection string
	fetcher    Fetcher
	states     storage.StateRepository
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store) error

// WithExtension sets the cache file extension. Default is "html".
func WithExtension(ext string) Option {
	return func(s *Store) error {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			return fmt.Errorf("cache extension cannot be empty")
		}
		s.ext = ext
		return nil
	}
}

// WithFormType sets the form requested from the fetcher. Default is "10-K".
func WithFormType(formType string) Option {
	return func(s *Store) error {
		if strings.TrimSpace(formType) == "" {
			return fmt.Errorf("form type cannot be empty")
		}
		s.formType = formType
		return nil
	}
}

// WithStates persists the Ingested state through repo.
// Without it the store only distinguishes NotFetched from Cached.
func WithStates(repo storage.StateRepository) Option {
	return func(s *Store) error {
		s.states = repo
		return nil
	}
}

// WithCollection sets the index collection that Ingested refers to.
// Default is "sec10k_chunks".
func WithCollection(name string) Option {
	return func(s *Store) error {
		if err := core.ValidateCollectionName(name); err != nil {
			return err
		}
		s.collection = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "filing_store")
		return nil
	}
}

// NewStore creates a cache store rooted at root. The directory is created on
// the first write.
func NewStore(root string, fetcher Fetcher, opts ...Option) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrCacheRootRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	s := &Store{
		root:       root,
		ext:        DefaultExtension,
		formType:   core.FormType10K,
		collection: DefaultCollection,
		fetcher:    fetcher,
		logger:     slog.Default().With("component", "filing_store"),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FormType returns the form the store fetches.
func (s *Store) FormType() string {
	return s.formType
}

// Collection returns the collection the store's Ingested state refers to.
func (s *Store) Collection() string {
	return s.collection
}

// Path returns the cache file path for a normalized symbol.
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_10k.%s", symbol, s.ext))
}

// GetOrFetch returns the cached filing for symbol, fetching and caching it
// on a miss. wasCached reports whether the bytes came from the cache.
//
// A fetch failure returns *core.FetchError and leaves no cache file.
// A write failure removes any partial file and returns *core.StorageError.
func (s *Store) GetOrFetch(ctx context.Context, symbol string) (wasCached bool, content []byte, err error) {
	symbol, err = core.NormalizeSymbol(symbol)
	if err != nil {
		return false, nil, err
	}

	unlock := s.lock(symbol)
	defer unlock()

	path := s.Path(symbol)
	content, err = os.ReadFile(path)
	if err == nil {
		s.logger.Info("Loading filing from cache", "symbol", symbol, "path", path)
		return true, content, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, nil, &core.StorageError{Path: path, Err: err}
	}

	s.logger.Info("Fetching filing", "symbol", symbol, "form", s.formType)
	content, err = s.fetcher.Fetch(ctx, symbol, s.formType)
	if err != nil {
		return false, nil, &core.FetchError{Symbol: symbol, Err: err}
	}
	if len(content) == 0 {
		return false, nil, &core.FetchError{Symbol: symbol, Err: core.ErrEmptyContent}
	}

	if err := s.write(path, content); err != nil {
		s.logger.Error("Error saving filing to cache", "symbol", symbol, "path", path, "err", err)
		return false, nil, &core.StorageError{Path: path, Err: err}
	}
	s.logger.Info("Cached filing", "symbol", symbol, "path", path, "bytes", len(content))
	return false, content, nil
}

// write stores content through a temp file in the cache directory and renames
// it into place. On failure neither the temp file nor path survives.
func (s *Store) write(path string, content []byte) (err error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.root, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Error("Error deleting partial cache file", "path", path, "err", rmErr)
			}
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// lock serializes work on one symbol and returns the matching unlock.
func (s *Store) lock(symbol string) func() {
	s.mu.Lock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// State reports where a symbol's document is in its lifecycle.
func (s *Store) State(ctx context.Context, symbol string) (core.DocumentState, error) {
	symbol, err := core.NormalizeSymbol(symbol)
	if err != nil {
		return core.StateNotFetched, err
	}

	if _, err := os.Stat(s.Path(symbol)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.StateNotFetched, nil
		}
		return core.StateNotFetched, &core.StorageError{Path: s.Path(symbol), Err: err}
	}
	if s.states == nil {
		return core.StateCached, nil
	}

	_, found, err := s.states.IngestedAt(ctx, s.collection, symbol)
	if err != nil {
		return core.StateCached, err
	}
	if found {
		return core.StateIngested, nil
	}
	return core.StateCached, nil
}

// TracksState reports whether the store records the Ingested state.
func (s *Store) TracksState() bool {
	return s.states != nil
}

// MarkIngested moves a symbol's document to its terminal state.
func (s *Store) MarkIngested(ctx context.Context, symbol string) error {
	symbol, err := core.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if s.states == nil {
		return ErrStateRepositoryRequired
	}
	return s.states.MarkIngested(ctx, s.collection, symbol, time.Now())
}

// Document returns the cached filing for symbol without fetching.
func (s *Store) Document(symbol string) (*core.FilingDocument, error) {
	symbol, err := core.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	path := s.Path(symbol)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNotCached)
		}
		return nil, &core.StorageError{Path: path, Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.StorageError{Path: path, Err: err}
	}

	return &core.FilingDocument{
		Symbol:   symbol,
		FormType: s.formType,
		Content:  content,
		Path:     path,
		CachedAt: info.ModTime(),
	}, nil
}
