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

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/retrieval"
)

// Config holds configuration for a re-embedding run.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress, in chunks
	ReportInterval int `yaml:"report_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
	}
}

// Reembedder recomputes every vector of a collection with the index's embedder.
type Reembedder struct {
	index     *retrieval.Index
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
}

// NewReembedder creates a reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(index *retrieval.Index, config *Config, progress io.Writer) (*Reembedder, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		index:     index,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index.Repository(), index.Embedder()),
		iterator:  NewChunkIterator(index.Repository(), config.BatchSize),
	}, nil
}

// Run re-embeds every chunk in collection and returns how many were updated.
// Ingestion into the collection waits until the run ends. A failed batch
// stops the run; batches before it keep their new vectors.
func (r *Reembedder) Run(ctx context.Context, collection string) (int, error) {
	c, err := r.index.Collection(collection)
	if err != nil {
		return 0, err
	}

	var processed int
	err = c.Locked(func() error {
		total, err := r.index.Repository().CountChunks(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to count chunks: %w", err)
		}
		if total == 0 {
			fmt.Fprintf(r.progress, "No chunks found in collection %s (0 chunks)\n", collection)
			return nil
		}

		fmt.Fprintf(r.progress, "Starting reembedding of %d chunks in %s (batch size: %d)\n",
			total, collection, r.iterator.batchSize)

		tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
		tracker.Start()

		err = r.iterator.ForEach(ctx, collection, func(chunks []*core.Chunk) error {
			if err := r.processor.Process(ctx, collection, chunks); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			processed += len(chunks)
			tracker.Add(len(chunks))
			return nil
		})
		tracker.Finish()
		if err != nil {
			return err
		}

		elapsed := tracker.Elapsed()
		fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
			processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())
		return nil
	})

	return processed, err
}
