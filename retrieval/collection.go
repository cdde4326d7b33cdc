package retrieval

import (
	"context"
	"fmt"
	"maps"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/filingrag/chunking"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
)

// Collection is a named partition of the index.
type Collection struct {
	name  string
	index *Index

	// writeMu serializes writers; readers never take it.
	writeMu sync.Mutex
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Locked runs fn while holding the collection's write lock.
func (c *Collection) Locked(fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return fn()
}

// IngestResult summarizes one IngestText call.
type IngestResult struct {
	Collection    string `json:"collection"`
	ChunksCreated int    `json:"chunks_created"`
	IngestionID   string `json:"ingestion_id"`
}

// IngestText chunks text with strategy (the index default when empty), embeds
// the chunks in batches and stores them with a copy of metadata.
//
// An embedding failure stops ingestion with a *core.EmbeddingError and a
// storage failure with a *core.StorageError. Batches stored before either
// are kept and counted in the partial result.
func (c *Collection) IngestText(ctx context.Context, text string, strategy chunking.Strategy, metadata map[string]string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrEmptyContent
	}

	config := c.index.chunking
	if strategy != "" {
		config.Strategy = strategy
	}
	chunker, err := chunking.New(config)
	if err != nil {
		return nil, err
	}

	var pieces []chunking.Piece
	for _, piece := range chunker.Split(text) {
		if strings.TrimSpace(piece.Text) != "" {
			pieces = append(pieces, piece)
		}
	}

	result := &IngestResult{
		Collection:  c.name,
		IngestionID: uuid.NewString(),
	}
	documentID := documentIDFor(text, metadata)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	logger := c.index.logger.With("collection", c.name, "ingestion_id", result.IngestionID)
	batchSize := c.index.batchSize
	for start := 0; start < len(pieces); start += batchSize {
		batch := pieces[start:min(start+batchSize, len(pieces))]

		texts := make([]string, len(batch))
		for i, piece := range batch {
			texts[i] = piece.Text
		}
		vectors, err := c.index.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(texts), len(vectors))
		}
		if err != nil {
			logger.Error("error embedding chunks", "stored", result.ChunksCreated, "err", err)
			return result, &core.EmbeddingError{Collection: c.name, Stored: result.ChunksCreated, Err: err}
		}

		chunks := make([]*core.Chunk, len(batch))
		for i, piece := range batch {
			meta := maps.Clone(metadata)
			if meta == nil {
				meta = make(map[string]string, 1)
			}
			meta[core.MetaIngestionID] = result.IngestionID

			chunks[i] = &core.Chunk{
				DocumentID: documentID,
				Index:      start + i,
				Offset:     piece.Offset,
				Text:       piece.Text,
				Vector:     vectors[i],
				Metadata:   meta,
			}
		}
		if _, err := c.index.chunks.AddChunks(ctx, c.name, chunks...); err != nil {
			logger.Error("error storing chunks", "stored", result.ChunksCreated, "err", err)
			return result, &core.StorageError{Path: c.name, Err: err}
		}
		result.ChunksCreated += len(chunks)
	}

	logger.Info("Ingested text", "chunks", result.ChunksCreated, "strategy", config.Strategy)
	return result, nil
}

// documentIDFor identifies filings by symbol and form, and anything else by content.
func documentIDFor(text string, metadata map[string]string) core.ID {
	symbol := metadata[core.MetaSymbol]
	if symbol == "" {
		return core.IDFromContent(text)
	}
	formType := metadata[core.MetaFilingType]
	if formType == "" {
		formType = core.FormType10K
	}
	return core.DocumentID(symbol, formType)
}

// Retrieve returns up to k hits for query, best first. Only chunks whose
// metadata holds every filter pair are candidates. Failures are logged and
// yield an empty result.
func (c *Collection) Retrieve(ctx context.Context, query string, k int, filter map[string]string) []*core.Hit {
	hits, err := c.Search(ctx, query, k, filter)
	if err != nil {
		c.index.logger.Warn("Retrieval failed, returning no results", "collection", c.name, "err", err)
		return []*core.Hit{}
	}
	return hits
}

// Search is Retrieve with failures returned as *core.QueryError.
func (c *Collection) Search(ctx context.Context, query string, k int, filter map[string]string) ([]*core.Hit, error) {
	return c.SearchWithMonitor(ctx, query, k, filter, nil)
}

// SearchWithMonitor is Search with callbacks at each stage of the query.
func (c *Collection) SearchWithMonitor(ctx context.Context, query string, k int, filter map[string]string, monitor Monitor) ([]*core.Hit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(c.name, query, k)

	if k < 1 {
		return nil, &core.QueryError{Collection: c.name, Err: fmt.Errorf("%w: got %d", ErrInvalidK, k)}
	}
	if strings.TrimSpace(query) == "" {
		return nil, &core.QueryError{Collection: c.name, Err: core.ErrEmptyContent}
	}
	for key := range filter {
		if key == "" {
			return nil, &core.QueryError{Collection: c.name, Err: ErrInvalidFilter}
		}
	}

	vector, err := c.index.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, &core.QueryError{Collection: c.name, Err: fmt.Errorf("embed query: %w", err)}
	}
	monitor.AfterEmbedding(len(vector))

	results, err := c.index.chunks.FindSimilar(ctx, c.name, vector, storage.Filter(filter), c.index.minSimilarity, k)
	if err != nil {
		return nil, &core.QueryError{Collection: c.name, Err: err}
	}
	monitor.AfterSearch(results)

	hits := make([]*core.Hit, len(results))
	for i, result := range results {
		hits[i] = &core.Hit{
			Rank:        i + 1,
			Score:       similarityScore(result.Score),
			Content:     preview(result.Chunk.Text, c.index.previewLength),
			FullContent: result.Chunk.Text,
			Metadata:    result.Chunk.Metadata,
		}
	}
	monitor.Finish(hits)

	return hits, nil
}

// similarityScore clamps a cosine similarity to [0, 1] and rounds it to
// three decimals.
func similarityScore(cosine float32) float64 {
	score := math.Max(0, math.Min(1, float64(cosine)))
	return math.Round(score*1000) / 1000
}

func preview(text string, length int) string {
	if utf8.RuneCountInString(text) <= length {
		return text
	}
	return string([]rune(text)[:length]) + "..."
}
