package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/filingrag/ai"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
)

// BatchProcessor re-embeds batches of chunks and writes the vectors back.
type BatchProcessor struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
	}
}

// Process embeds the chunks' text and replaces their stored vectors.
// Vectors are normalized so cosine similarity stays a dot product.
func (bp *BatchProcessor) Process(ctx context.Context, collection string, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := bp.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return &core.EmbeddingError{Collection: collection, Err: err}
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		chunk.Vector = NormalizeVector(vectors[i])
	}

	if err := bp.repo.UpdateVectors(ctx, collection, chunks...); err != nil {
		return fmt.Errorf("failed to update vectors: %w", err)
	}
	return nil
}
