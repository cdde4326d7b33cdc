package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a filing store is not provided.
	ErrStoreRequired = errors.New("filing store required")

	// ErrIndexRequired is returned when a retrieval index is not provided.
	ErrIndexRequired = errors.New("retrieval index required")

	// ErrPipelineRequired is returned when an analyzer has no pipeline.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrNoContent is returned when a filing renders to empty markdown.
	ErrNoContent = errors.New("no target sections rendered")
)
