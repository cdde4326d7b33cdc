package filing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher returns fixed content and counts calls.
type countingFetcher struct {
	content []byte
	err     error
	calls   atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, symbol, formType string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore("", &countingFetcher{})
	assert.ErrorIs(t, err, ErrCacheRootRequired)

	_, err = NewStore(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	_, err = NewStore(t.TempDir(), &countingFetcher{}, WithCollection("bad name"))
	assert.ErrorIs(t, err, core.ErrInvalidCollection)

	_, err = NewStore(t.TempDir(), &countingFetcher{}, WithExtension(" "))
	assert.Error(t, err)
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	root := t.TempDir()
	fetcher := &countingFetcher{content: []byte("<html>10-K</html>")}
	store, err := NewStore(root, fetcher)
	require.NoError(t, err)
	ctx := context.Background()

	wasCached, first, err := store.GetOrFetch(ctx, "aapl")
	require.NoError(t, err)
	assert.False(t, wasCached)

	wasCached, second, err := store.GetOrFetch(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, wasCached)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	onDisk, err := os.ReadFile(filepath.Join(root, "AAPL_10k.html"))
	require.NoError(t, err)
	assert.Equal(t, first, onDisk)

	// No temp files left behind
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetOrFetch_FetchFailureCreatesNoFile(t *testing.T) {
	root := t.TempDir()
	fetcher := &countingFetcher{err: core.ErrFilingNotFound}
	store, err := NewStore(root, fetcher)
	require.NoError(t, err)

	_, _, err = store.GetOrFetch(context.Background(), "ZZZZ")
	var fetchErr *core.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "ZZZZ", fetchErr.Symbol)
	assert.ErrorIs(t, err, core.ErrFilingNotFound)

	_, statErr := os.Stat(store.Path("ZZZZ"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetOrFetch_EmptyContentIsFetchError(t *testing.T) {
	store, err := NewStore(t.TempDir(), &countingFetcher{content: nil})
	require.NoError(t, err)

	_, _, err = store.GetOrFetch(context.Background(), "AAPL")
	var fetchErr *core.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, core.ErrEmptyContent)
}

func TestGetOrFetch_UnusableCacheRoot(t *testing.T) {
	// A regular file where the cache directory should be
	root := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(root, []byte("not a directory"), 0644))

	store, err := NewStore(root, &countingFetcher{content: []byte("data")})
	require.NoError(t, err)

	_, _, err = store.GetOrFetch(context.Background(), "AAPL")
	var storageErr *core.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, store.Path("AAPL"), storageErr.Path)

	state, err := store.State(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, core.StateNotFetched, state)
}

func TestWrite_FailureLeavesNoTempFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, &countingFetcher{})
	require.NoError(t, err)

	// Renaming onto a non-empty directory fails after the temp file is written
	path := store.Path("AAPL")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0755))

	err = store.write(path, []byte("data"))
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL_10k.html", entries[0].Name())
	assert.True(t, entries[0].IsDir())
}

func TestGetOrFetch_InvalidSymbol(t *testing.T) {
	fetcher := &countingFetcher{content: []byte("x")}
	store, err := NewStore(t.TempDir(), fetcher)
	require.NoError(t, err)

	_, _, err = store.GetOrFetch(context.Background(), "../etc")
	assert.ErrorIs(t, err, core.ErrInvalidSymbol)
	assert.Zero(t, fetcher.calls.Load())
}

func TestGetOrFetch_ConcurrentCallsFetchOnce(t *testing.T) {
	fetcher := &countingFetcher{content: []byte("<html/>")}
	store, err := NewStore(t.TempDir(), fetcher)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		misses atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wasCached, _, err := store.GetOrFetch(context.Background(), "MSFT")
			assert.NoError(t, err)
			if !wasCached {
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), misses.Load())
}

func TestStoreLifecycle(t *testing.T) {
	chunks, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		chunks.Close()
		backend.Close()
	}()

	store, err := NewStore(t.TempDir(), &countingFetcher{content: []byte("<html/>")}, WithStates(states))
	require.NoError(t, err)
	ctx := context.Background()

	state, err := store.State(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, core.StateNotFetched, state)

	_, _, err = store.GetOrFetch(ctx, "AAPL")
	require.NoError(t, err)
	state, err = store.State(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, core.StateCached, state)

	require.NoError(t, store.MarkIngested(ctx, "aapl"))
	state, err = store.State(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, core.StateIngested, state)

	// The mark belongs to the store's collection
	other, err := NewStore(filepath.Dir(store.Path("AAPL")), &countingFetcher{}, WithStates(states), WithCollection("other"))
	require.NoError(t, err)
	state, err = other.State(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, core.StateCached, state)
}

func TestStoreWithoutStates(t *testing.T) {
	store, err := NewStore(t.TempDir(), &countingFetcher{content: []byte("x")})
	require.NoError(t, err)

	err = store.MarkIngested(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrStateRepositoryRequired)
}

func TestDocument(t *testing.T) {
	store, err := NewStore(t.TempDir(), &countingFetcher{content: []byte("<html/>")}, WithExtension(".htm"))
	require.NoError(t, err)

	_, err = store.Document("AAPL")
	assert.ErrorIs(t, err, ErrNotCached)

	_, _, err = store.GetOrFetch(context.Background(), "AAPL")
	require.NoError(t, err)

	doc, err := store.Document("aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", doc.Symbol)
	assert.Equal(t, core.FormType10K, doc.FormType)
	assert.Equal(t, []byte("<html/>"), doc.Content)
	assert.Equal(t, "AAPL_10k.htm", filepath.Base(doc.Path))
	assert.False(t, doc.CachedAt.IsZero())
}
