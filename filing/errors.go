package filing

import "errors"

var (
	// ErrFetcherRequired is returned when a fetcher is not provided.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrCacheRootRequired is returned when the cache directory is empty.
	ErrCacheRootRequired = errors.New("cache root required")

	// ErrStateRepositoryRequired is returned when lifecycle marks are written
	// to a store without a state repository.
	ErrStateRepositoryRequired = errors.New("state repository required")

	// ErrFilingTooLarge is returned when a download exceeds the fetcher's size limit.
	ErrFilingTooLarge = errors.New("filing too large")

	// ErrNotCached is returned when reading a document that has no cache file.
	ErrNotCached = errors.New("filing not cached")
)
