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

// Package filingrag wires the filing cache, parser, renderer, index and
// analysis components into one System.
package filingrag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/filingrag/ai"
	"github.com/poiesic/filingrag/ai/openai"
	"github.com/poiesic/filingrag/config"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/filing"
	"github.com/poiesic/filingrag/ingestion"
	"github.com/poiesic/filingrag/reembed"
	"github.com/poiesic/filingrag/render"
	"github.com/poiesic/filingrag/retrieval"
	"github.com/poiesic/filingrag/storage"
	"github.com/poiesic/filingrag/storage/badger"
)

// LogFile is the name of the log file written under the log directory.
const LogFile = "filingrag.log"

var (
	initOnce sync.Once
	initErr  error
)

// Init creates the cache, output and log directories and installs the
// default logger, writing text records to stderr and to the log file.
// Only the first call has any effect.
func Init(cfg *config.Config) error {
	initOnce.Do(func() {
		initErr = setup(cfg)
	})
	return initErr
}

func setup(cfg *config.Config) error {
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// Left open for the life of the process.
	file, err := os.OpenFile(filepath.Join(cfg.Paths.LogDir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

// System holds every component of an open filingrag instance.
type System struct {
	config   *config.Config
	backend  *badger.Backend
	chunks   storage.ChunkRepository
	states   storage.StateRepository
	provider ai.AIProvider
	index    *retrieval.Index
	pipeline *ingestion.Pipeline
	analysis *ingestion.Pipeline
	analyzer *ingestion.Analyzer
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider ai.AIProvider
	fetcher  filing.Fetcher
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses provider instead of the configured embedding service.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithFetcher uses fetcher instead of SEC EDGAR.
func WithFetcher(fetcher filing.Fetcher) Option {
	return func(o *options) {
		o.fetcher = fetcher
	}
}

// WithInMemoryIndex keeps the index in memory instead of the index directory.
func WithInMemoryIndex() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the index and builds every component from cfg.
func Open(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := badger.OpenBackend(cfg.Paths.IndexDir, o.inMemory)
	if err != nil {
		return nil, err
	}

	s := &System{
		config:  cfg,
		backend: backend,
		chunks:  badger.NewChunkRepository(backend),
		states:  badger.NewStateRepository(backend),
		logger:  logger,
	}

	if err := s.build(o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *System) build(o *options) error {
	cfg := s.config

	s.provider = o.provider
	if s.provider == nil {
		provider, err := openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return err
		}
		s.provider = provider
	}

	index, err := retrieval.NewIndex(s.chunks, s.provider,
		retrieval.WithChunking(cfg.Chunking),
		retrieval.WithBatchSize(cfg.Embedding.BatchSize),
		retrieval.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.index = index

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = filing.NewEDGARFetcher(
			filing.WithUserAgent(cfg.EDGAR.Company, cfg.EDGAR.Email),
			filing.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.EDGAR.TimeoutSecs) * time.Second}),
			filing.WithEDGARLogger(s.logger))
	}

	renderer, err := render.New(
		render.WithTextLimits(cfg.Render.TextLimit, cfg.Render.TruncateTo),
		render.WithTables(cfg.Render.Tables),
		render.WithLogger(s.logger))
	if err != nil {
		return err
	}

	// Both pipelines share the cache; ingestion state is kept per collection.
	if s.pipeline, err = s.newPipeline(fetcher, renderer, cfg.Retrieval.Collection); err != nil {
		return err
	}
	if s.analysis, err = s.newPipeline(fetcher, renderer, cfg.Retrieval.AnalysisCollection); err != nil {
		return err
	}

	s.analyzer, err = ingestion.NewAnalyzer(s.analysis, ingestion.WithAnalyzerLogger(s.logger))
	return err
}

func (s *System) newPipeline(fetcher filing.Fetcher, renderer *render.Renderer, collection string) (*ingestion.Pipeline, error) {
	cfg := s.config
	store, err := filing.NewStore(cfg.Paths.CacheDir, fetcher,
		filing.WithStates(s.states),
		filing.WithCollection(collection),
		filing.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	opts := []ingestion.Option{
		ingestion.WithRenderer(renderer),
		ingestion.WithTargets(cfg.Targets...),
		ingestion.WithOutputDir(cfg.Paths.OutputDir),
		ingestion.WithLogger(s.logger),
	}
	if cfg.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(cfg.PoolSize))
	}
	return ingestion.NewPipeline(store, s.index, opts...)
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.Config {
	return s.config
}

// Index returns the retrieval index.
func (s *System) Index() *retrieval.Index {
	return s.index
}

// Pipeline returns the pipeline indexing into the default collection.
func (s *System) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Analyzer returns the analyzer over the analysis collection.
func (s *System) Analyzer() *ingestion.Analyzer {
	return s.analyzer
}

// Process runs symbols through the default pipeline.
func (s *System) Process(ctx context.Context, symbols ...string) ([]*ingestion.Result, error) {
	return s.pipeline.ProcessAll(ctx, symbols)
}

// Query retrieves up to k hits from the default collection. A non-empty
// symbol restricts hits to that filing.
func (s *System) Query(ctx context.Context, query string, k int, symbol string) ([]*core.Hit, error) {
	collection, err := s.index.Collection(s.config.Retrieval.Collection)
	if err != nil {
		return nil, err
	}
	var filter map[string]string
	if symbol != "" {
		normalized, err := core.NormalizeSymbol(symbol)
		if err != nil {
			return nil, err
		}
		filter = map[string]string{core.MetaSymbol: normalized}
	}
	return collection.Retrieve(ctx, query, k, filter), nil
}

// NewReembedder creates a reembedder over the index.
func (s *System) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(s.index, config, progress)
}

// Close releases the pipelines, the embedding provider and the index.
func (s *System) Close() error {
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.analysis != nil {
		s.analysis.Release()
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}

	if err := s.chunks.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
