package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
	"github.com/poiesic/filingrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "sec10k_chunks"

func setupTestDB(t *testing.T) (storage.ChunkRepository, func()) {
	backend, err := badger.OpenBackend("", true) // in-memory
	require.NoError(t, err)

	repo := badger.NewChunkRepository(backend)

	cleanup := func() {
		repo.Close()
		backend.Close()
	}

	return repo, cleanup
}

// addChunks stores n chunks with a placeholder vector.
func addChunks(t *testing.T, repo storage.ChunkRepository, n int) []*core.Chunk {
	t.Helper()
	chunks := make([]*core.Chunk, n)
	for i := range n {
		chunks[i] = &core.Chunk{
			DocumentID: core.DocumentID("AAPL", core.FormType10K),
			Index:      i,
			Text:       fmt.Sprintf("risk factor %d", i),
			Vector:     []float32{1, 0, 0},
			Metadata:   map[string]string{core.MetaSymbol: "AAPL"},
		}
	}
	added, err := repo.AddChunks(context.Background(), testCollection, chunks...)
	require.NoError(t, err)
	return added
}

func TestChunkIterator_Batches(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	addChunks(t, repo, 25)

	var sizes []int
	var seen []core.ID
	err := NewChunkIterator(repo, 10).ForEach(context.Background(), testCollection, func(chunks []*core.Chunk) error {
		sizes = append(sizes, len(chunks))
		for _, chunk := range chunks {
			seen = append(seen, chunk.Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 5}, sizes)
	require.Len(t, seen, 25)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, uint64(seen[i-1]), uint64(seen[i]))
	}
}

func TestChunkIterator_EmptyCollection(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	calls := 0
	err := NewChunkIterator(repo, 10).ForEach(context.Background(), testCollection, func([]*core.Chunk) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Equal(t, DefaultBatchSize, NewChunkIterator(repo, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(repo, -5).batchSize)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	addChunks(t, repo, 25)

	boom := errors.New("stop")
	calls := 0
	err := NewChunkIterator(repo, 10).ForEach(context.Background(), testCollection, func([]*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCanceled(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	addChunks(t, repo, 25)

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := NewChunkIterator(repo, 10).ForEach(ctx, testCollection, func([]*core.Chunk) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})

	t.Run("between batches", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		err := NewChunkIterator(repo, 10).ForEach(ctx, testCollection, func([]*core.Chunk) error {
			calls++
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
