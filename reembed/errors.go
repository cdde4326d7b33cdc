package reembed

import "errors"

var (
	// ErrIndexRequired is returned when a retrieval index is not provided.
	ErrIndexRequired = errors.New("retrieval index required")

	// ErrEmbeddingCount is returned when the embedder returns a different
	// number of vectors than chunks it was given.
	ErrEmbeddingCount = errors.New("embedding count does not match batch")
)
