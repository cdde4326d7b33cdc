package filing

import "context"

// Fetcher obtains raw filing markup from a remote repository.
// Implementations return an error wrapping core.ErrFilingNotFound when the
// repository has no such filing.
type Fetcher interface {
	Fetch(ctx context.Context, symbol, formType string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, symbol, formType string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, symbol, formType string) ([]byte, error) {
	return f(ctx, symbol, formType)
}
