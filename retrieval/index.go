package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/filingrag/ai"
	"github.com/poiesic/filingrag/chunking"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
)

const (
	// DefaultCollection holds chunks of processed 10-K filings.
	DefaultCollection = "sec10k_chunks"
	// AnalysisCollection holds filings stored for analysis requests.
	AnalysisCollection = "sec_filings_enhanced"

	DefaultK             = 8
	DefaultAnalysisK     = 5
	DefaultBatchSize     = 32
	DefaultPreviewLength = 500

	// noThreshold admits every cosine similarity.
	noThreshold float32 = -1
)

// Index embeds and stores chunks in named collections.
type Index struct {
	chunks        storage.ChunkRepository
	embedder      ai.Embedder
	model         string
	chunking      chunking.Config
	batchSize     int
	minSimilarity float32
	previewLength int
	logger        *slog.Logger

	mu          sync.Mutex
	collections map[string]*Collection
}

// Option configures an Index.
type Option func(*Index) error

// WithChunking sets the default chunking strategy, window and overlap.
func WithChunking(config chunking.Config) Option {
	return func(x *Index) error {
		if err := config.Validate(); err != nil {
			return err
		}
		x.chunking = config
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded and stored together.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(x *Index) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		x.batchSize = size
		return nil
	}
}

// WithMinSimilarity drops candidates whose cosine similarity is below threshold.
// By default every candidate is ranked.
func WithMinSimilarity(threshold float32) Option {
	return func(x *Index) error {
		x.minSimilarity = threshold
		return nil
	}
}

// WithPreviewLength sets how many characters of a chunk a hit previews.
// Default is 500.
func WithPreviewLength(length int) Option {
	return func(x *Index) error {
		if length < 1 {
			return fmt.Errorf("preview length must be positive, got %d", length)
		}
		x.previewLength = length
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(x *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		x.logger = logger.With("component", "retrieval")
		return nil
	}
}

// NewIndex creates an index over a chunk repository.
func NewIndex(chunks storage.ChunkRepository, provider ai.AIProvider, opts ...Option) (*Index, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	x := &Index{
		chunks:        chunks,
		embedder:      provider.Embedder(),
		model:         provider.Model(),
		chunking:      chunking.DefaultConfig(),
		batchSize:     DefaultBatchSize,
		minSimilarity: noThreshold,
		previewLength: DefaultPreviewLength,
		logger:        slog.Default().With("component", "retrieval"),
		collections:   make(map[string]*Collection),
	}

	for _, opt := range opts {
		if err := opt(x); err != nil {
			return nil, err
		}
	}

	return x, nil
}

// Collection returns the handle for a named collection. Handles are shared,
// so every caller writing to the same name takes the same lock.
func (x *Index) Collection(name string) (*Collection, error) {
	if err := core.ValidateCollectionName(name); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.collections[name]
	if !ok {
		c = &Collection{name: name, index: x}
		x.collections[name] = c
	}
	return c, nil
}

// Embedder returns the embedder used for chunks and queries.
func (x *Index) Embedder() ai.Embedder {
	return x.embedder
}

// Repository returns the underlying chunk repository.
func (x *Index) Repository() storage.ChunkRepository {
	return x.chunks
}

// Collections lists the stored collections with their chunk and document counts.
func (x *Index) Collections(ctx context.Context) ([]*core.CollectionInfo, error) {
	return x.chunks.ListCollections(ctx)
}

// Stats describes the index configuration and contents.
type Stats struct {
	EmbeddingModel string                 `json:"embedding_model"`
	Strategy       chunking.Strategy      `json:"chunking_strategy"`
	ChunkSize      int                    `json:"chunk_size"`
	ChunkOverlap   int                    `json:"chunk_overlap"`
	TotalChunks    int                    `json:"total_chunks"`
	Collections    []*core.CollectionInfo `json:"collections"`
}

// Stats reports the index configuration with per-collection counts.
func (x *Index) Stats(ctx context.Context) (*Stats, error) {
	infos, err := x.chunks.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		EmbeddingModel: x.model,
		Strategy:       x.chunking.Strategy,
		ChunkSize:      x.chunking.Size,
		ChunkOverlap:   x.chunking.Overlap,
		Collections:    infos,
	}
	for _, info := range infos {
		stats.TotalChunks += info.Chunks
	}
	return stats, nil
}

// DeleteCollection removes a collection and its chunks once in-flight writes
// to it have finished.
func (x *Index) DeleteCollection(ctx context.Context, name string) error {
	c, err := x.Collection(name)
	if err != nil {
		return err
	}
	return c.Locked(func() error {
		if err := x.chunks.DeleteCollection(ctx, name); err != nil {
			return err
		}
		x.logger.Info("Deleted collection", "collection", name)
		return nil
	})
}
