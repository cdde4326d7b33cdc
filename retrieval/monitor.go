package retrieval

import "github.com/poiesic/filingrag/core"

// Monitor provides hooks to observe a query.
// Implement this interface to trace intermediate steps of retrieval.
type Monitor interface {
	Start(collection, query string, k int)
	AfterEmbedding(dimensions int)
	AfterSearch(results []*core.SearchResult)
	Finish(hits []*core.Hit)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ string, _ int)    {}
func (n *noopMonitor) AfterEmbedding(_ int)               {}
func (n *noopMonitor) AfterSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) Finish(_ []*core.Hit)               {}
