package badger

import "github.com/poiesic/filingrag/storage"

// NewMemoryRepositories creates in-memory chunk and state repositories for testing.
// Returns chunkRepo, stateRepo, backend, and error.
// Caller must close the chunk repo and the backend when done.
func NewMemoryRepositories() (storage.ChunkRepository, storage.StateRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	return NewChunkRepository(backend), NewStateRepository(backend), backend, nil
}
