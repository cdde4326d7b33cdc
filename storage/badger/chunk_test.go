package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddChunks(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	added, err := repo.AddChunks(ctx, "sec10k_chunks",
		&core.Chunk{Index: 0, Offset: 0, Text: "first"},
		&core.Chunk{Index: 1, Offset: 800, Text: "second"},
	)
	require.NoError(t, err)
	require.Len(t, added, 2)

	assert.NotZero(t, added[0].Id)
	assert.Less(t, added[0].Id, added[1].Id)
	for _, c := range added {
		assert.Equal(t, "sec10k_chunks", c.Collection)
		assert.True(t, c.InsertedAt.After(before))
	}

	count, err := repo.CountChunks(ctx, "sec10k_chunks")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAddChunks_Validation(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	_, err := repo.AddChunks(ctx, "bad:name", &core.Chunk{Text: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidCollection)

	_, err = repo.AddChunks(ctx, "c", &core.Chunk{Text: ""})
	assert.ErrorIs(t, err, core.ErrInvalidChunk)

	count, err := repo.CountChunks(ctx, "c")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	first, err := repo.EnsureCollection(ctx, "c")
	require.NoError(t, err)
	second, err := repo.EnsureCollection(ctx, "c")
	require.NoError(t, err)

	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestForEachChunk_PagesInOrder(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	for i := range 25 {
		_, err := repo.AddChunks(ctx, "c", &core.Chunk{Index: i, Text: fmt.Sprintf("chunk %d", i)})
		require.NoError(t, err)
	}

	var (
		batches int
		seen    []int
	)
	err := repo.ForEachChunk(ctx, "c", 10, func(batch []*core.Chunk) error {
		batches++
		for _, c := range batch {
			seen = append(seen, c.Index)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, batches)
	require.Len(t, seen, 25)
	for i, idx := range seen {
		assert.Equal(t, i, idx)
	}
}

func TestForEachChunk_StopsOnError(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	for range 5 {
		_, err := repo.AddChunks(ctx, "c", &core.Chunk{Text: "x"})
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	calls := 0
	err := repo.ForEachChunk(ctx, "c", 2, func([]*core.Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestUpdateVectors(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	added, err := repo.AddChunks(ctx, "c", &core.Chunk{Text: "x", Vector: []float32{1, 0}})
	require.NoError(t, err)

	added[0].Vector = []float32{0, 1}
	require.NoError(t, repo.UpdateVectors(ctx, "c", added[0]))

	results, err := repo.FindSimilar(ctx, "c", []float32{0, 1}, nil, -1, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "x", results[0].Chunk.Text)

	err = repo.UpdateVectors(ctx, "c", &core.Chunk{Id: 9999, Vector: []float32{1}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListCollections(t *testing.T) {
	repo, _ := newTestChunks(t)
	ctx := context.Background()

	aapl := core.DocumentID("AAPL", core.FormType10K)
	msft := core.DocumentID("MSFT", core.FormType10K)
	_, err := repo.AddChunks(ctx, "a",
		&core.Chunk{Text: "1", DocumentID: aapl},
		&core.Chunk{Text: "2", DocumentID: aapl},
		&core.Chunk{Text: "3", DocumentID: msft},
	)
	require.NoError(t, err)
	_, err = repo.EnsureCollection(ctx, "b")
	require.NoError(t, err)

	infos, err := repo.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 3, infos[0].Chunks)
	assert.Equal(t, 2, infos[0].Documents)
	assert.Equal(t, "b", infos[1].Name)
	assert.Zero(t, infos[1].Chunks)
}

func TestDeleteCollection(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	repo := NewChunkRepository(backend)
	defer repo.Close()
	states := NewStateRepository(backend)
	ctx := context.Background()

	_, err = repo.AddChunks(ctx, "sec", &core.Chunk{Text: "a"})
	require.NoError(t, err)
	_, err = repo.AddChunks(ctx, "sec10k", &core.Chunk{Text: "b"})
	require.NoError(t, err)
	require.NoError(t, states.MarkIngested(ctx, "sec", "AAPL", time.Now()))

	require.NoError(t, repo.DeleteCollection(ctx, "sec"))

	count, err := repo.CountChunks(ctx, "sec")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, found, err := states.IngestedAt(ctx, "sec", "AAPL")
	require.NoError(t, err)
	assert.False(t, found)

	infos, err := repo.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "sec10k", infos[0].Name)
	assert.Equal(t, 1, infos[0].Chunks)

	// Deleting again is fine and the collection can be reused
	require.NoError(t, repo.DeleteCollection(ctx, "sec"))
	_, err = repo.AddChunks(ctx, "sec", &core.Chunk{Text: "again"})
	require.NoError(t, err)
}
