package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/filingrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1.0, 2.0, 2.0}, nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Unnormalized, magnitude 3
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0}
	}
	return result, nil
}

func storedVectors(t *testing.T, processor *BatchProcessor) map[core.ID][]float32 {
	t.Helper()
	vectors := make(map[core.ID][]float32)
	err := processor.repo.ForEachChunk(context.Background(), testCollection, 100, func(chunks []*core.Chunk) error {
		for _, chunk := range chunks {
			vectors[chunk.Id] = chunk.Vector
		}
		return nil
	})
	require.NoError(t, err)
	return vectors
}

func TestBatchProcessor_Process(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	added := addChunks(t, repo, 3)

	processor := NewBatchProcessor(repo, &mockEmbedder{})
	require.NoError(t, processor.Process(context.Background(), testCollection, added))

	vectors := storedVectors(t, processor)
	require.Len(t, vectors, 3)
	for id, vector := range vectors {
		assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, vector, 1e-6, "chunk %d", id)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	called := false
	processor := NewBatchProcessor(repo, &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			called = true
			return nil, nil
		},
	})
	require.NoError(t, processor.Process(context.Background(), testCollection, nil))
	assert.False(t, called)
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	added := addChunks(t, repo, 2)

	boom := errors.New("quota exceeded")
	processor := NewBatchProcessor(repo, &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, boom
		},
	})

	err := processor.Process(context.Background(), testCollection, added)
	var embedErr *core.EmbeddingError
	require.ErrorAs(t, err, &embedErr)
	assert.ErrorIs(t, err, boom)

	for _, vector := range storedVectors(t, processor) {
		assert.Equal(t, []float32{1, 0, 0}, vector)
	}
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	added := addChunks(t, repo, 2)

	processor := NewBatchProcessor(repo, &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		},
	})

	err := processor.Process(context.Background(), testCollection, added)
	assert.ErrorIs(t, err, ErrEmbeddingCount)
}

func TestBatchProcessor_MissingChunk(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	addChunks(t, repo, 1)

	ghost := &core.Chunk{Id: 9999, Text: "not stored"}
	processor := NewBatchProcessor(repo, &mockEmbedder{})

	err := processor.Process(context.Background(), testCollection, []*core.Chunk{ghost})
	assert.Error(t, err)
}
