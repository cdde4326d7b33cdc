package badger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Each collection owns an ID sequence, opened on first write.
type ChunkRepository struct {
	backend *Backend

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{
		backend: backend,
		seqs:    make(map[string]*badger.Sequence),
	}
}

// Close releases the ID sequences.
func (r *ChunkRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, seq := range r.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, err)
		}
		delete(r.seqs, name)
	}
	return errors.Join(errs...)
}

func (r *ChunkRepository) sequence(collection string) (*badger.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq, ok := r.seqs[collection]; ok {
		return seq, nil
	}
	seq, err := r.backend.GetSequence(makeChunkSeqKey(collection))
	if err != nil {
		return nil, err
	}
	r.seqs[collection] = seq
	return seq, nil
}

// nextID draws from the collection sequence.
// BadgerDB sequences can return 0 on first call, so we skip it.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		id, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(id), nil
}

// EnsureCollection creates the named collection if it does not exist.
func (r *ChunkRepository) EnsureCollection(ctx context.Context, name string) (*core.CollectionInfo, error) {
	if err := core.ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var info *core.CollectionInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = r.ensureCollection(tx, name)
		if err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return info, err
}

func (r *ChunkRepository) ensureCollection(tx *badger.Txn, name string) (*core.CollectionInfo, error) {
	key := makeCollectionKey(name)
	existing, err := readCollection(tx, key)
	if err != nil || existing != nil {
		return existing, err
	}

	info := &core.CollectionInfo{Name: name, CreatedAt: time.Now().UTC()}
	if err := tx.Set(key, storage.MarshalCollectionInfo(info)); err != nil {
		return nil, err
	}
	return info, nil
}

func readCollection(tx *badger.Txn, key []byte) (*core.CollectionInfo, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var info *core.CollectionInfo
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		info, unmarshalErr = storage.UnmarshalCollectionInfo(val)
		return unmarshalErr
	})
	return info, err
}

// AddChunks stores chunks in a collection in a single transaction.
func (r *ChunkRepository) AddChunks(ctx context.Context, collection string, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	if err := core.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		chunk.Collection = collection
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}
	if len(chunks) == 0 {
		return chunks, nil
	}

	seq, err := r.sequence(collection)
	if err != nil {
		return nil, err
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := r.ensureCollection(tx, collection); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, chunk := range chunks {
			id, err := nextID(seq)
			if err != nil {
				return err
			}
			chunk.Id = id
			chunk.InsertedAt = now

			if err := tx.Set(makeChunkKey(collection, chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// UpdateVectors replaces the vectors of existing chunks.
func (r *ChunkRepository) UpdateVectors(ctx context.Context, collection string, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(collection, chunk.Id)
			stored, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if stored == nil {
				return storage.ErrNotFound
			}

			stored.Vector = chunk.Vector
			if err := tx.Set(key, storage.MarshalChunk(stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, collection string, vector []float32, filter storage.Filter, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, collection, vector, filter, minSimilarity, limit)
}

// ForEachChunk pages through a collection. Each page is read in its own
// transaction so fn may write to the repository.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, collection string, batchSize int, fn func([]*core.Chunk) error) error {
	if batchSize < 1 {
		batchSize = 100
	}
	prefix := makeChunkScanPrefix(collection)
	seek := prefix

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]*core.Chunk, 0, batchSize)
		var lastKey []byte
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(seek); iter.Valid() && len(batch) < batchSize; iter.Next() {
				item := iter.Item()
				var chunk *core.Chunk
				err := item.Value(func(val []byte) error {
					var err error
					chunk, err = storage.UnmarshalChunk(val)
					return err
				})
				if err != nil {
					return err
				}
				batch = append(batch, chunk)
				lastKey = item.KeyCopy(nil)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		// The smallest key greater than lastKey
		seek = append(lastKey, 0)
	}
}

// CountChunks counts the keys of a collection without reading values.
func (r *ChunkRepository) CountChunks(ctx context.Context, collection string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanPrefix(collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ListCollections returns every collection with chunk and distinct document counts.
func (r *ChunkRepository) ListCollections(ctx context.Context) ([]*core.CollectionInfo, error) {
	var infos []*core.CollectionInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionScanPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var info *core.CollectionInfo
			err := iter.Item().Value(func(val []byte) error {
				var err error
				info, err = storage.UnmarshalCollectionInfo(val)
				return err
			})
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if err := r.countCollection(ctx, info); err != nil {
			return nil, err
		}
	}
	return infos, nil
}

func (r *ChunkRepository) countCollection(ctx context.Context, info *core.CollectionInfo) error {
	documents := make(map[core.ID]struct{})
	chunks := 0
	err := r.ForEachChunk(ctx, info.Name, 500, func(batch []*core.Chunk) error {
		for _, chunk := range batch {
			documents[chunk.DocumentID] = struct{}{}
		}
		chunks += len(batch)
		return nil
	})
	info.Chunks = chunks
	info.Documents = len(documents)
	return err
}

// DeleteCollection removes a collection and everything keyed under it.
func (r *ChunkRepository) DeleteCollection(ctx context.Context, name string) error {
	if err := core.ValidateCollectionName(name); err != nil {
		return err
	}

	r.mu.Lock()
	if seq, ok := r.seqs[name]; ok {
		_ = seq.Release()
		delete(r.seqs, name)
	}
	r.mu.Unlock()

	// Only ':'-terminated prefixes are safe to drop; exact keys are deleted
	// individually so "sec" never takes "sec10k" with it.
	if err := r.backend.DeletePrefix(makeChunkScanPrefix(name), makeDocStateScanPrefix(name)); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCollectionKey(name)); err != nil {
			return err
		}
		if err := tx.Delete([]byte(makeChunkSeqKey(name))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
