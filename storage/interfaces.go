package storage

import (
	"context"
	"time"

	"github.com/poiesic/filingrag/core"
)

// Filter restricts a search to chunks whose metadata contains every key/value pair exactly.
// A nil or empty Filter matches every chunk.
type Filter map[string]string

// Matches reports whether metadata satisfies every pair in the filter.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// ChunkRepository stores embedded chunks partitioned into named collections.
// Implementations must be thread-safe. Callers serialize writes per collection.
type ChunkRepository interface {
	// EnsureCollection creates the named collection if it does not exist and returns it.
	EnsureCollection(ctx context.Context, name string) (*core.CollectionInfo, error)

	// AddChunks stores chunks in a collection, creating the collection if needed.
	// Assigns IDs from the collection's sequence in argument order and sets InsertedAt.
	// Returns the chunks with IDs populated.
	AddChunks(ctx context.Context, collection string, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateVectors replaces the stored vectors of existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateVectors(ctx context.Context, collection string, chunks ...*core.Chunk) error

	// FindSimilar returns chunks of a collection ranked by cosine similarity to vector.
	// Only chunks matching filter are considered. Results have similarity >= minSimilarity,
	// number at most limit, and are ordered by similarity (highest first).
	// A collection that does not exist yields no results and no error.
	FindSimilar(ctx context.Context, collection string, vector []float32, filter Filter, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// ForEachChunk calls fn with successive batches of a collection's chunks in ID order.
	// Iteration stops at the first error returned by fn.
	ForEachChunk(ctx context.Context, collection string, batchSize int, fn func([]*core.Chunk) error) error

	// CountChunks returns the number of chunks stored in a collection.
	CountChunks(ctx context.Context, collection string) (int, error)

	// ListCollections returns every collection with chunk and document counts.
	ListCollections(ctx context.Context) ([]*core.CollectionInfo, error)

	// DeleteCollection removes a collection, its chunks and its document states.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases resources held by the repository.
	Close() error
}

// StateRepository persists which documents have been ingested into which collection.
type StateRepository interface {
	// MarkIngested records that symbol has been ingested into collection.
	MarkIngested(ctx context.Context, collection, symbol string, at time.Time) error

	// IngestedAt returns when symbol was ingested into collection.
	// The boolean is false when no record exists.
	IngestedAt(ctx context.Context, collection, symbol string) (time.Time, bool, error)
}
