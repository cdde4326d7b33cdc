// Package ingestion runs filings through the processing pipeline and answers
// analysis requests over the indexed result.
//
// For one symbol the Pipeline runs strictly in order:
//   - Fetching or loading the cached filing
//   - Parsing it and selecting the target sections
//   - Rendering the sections to markdown and writing the output file
//   - Chunking and indexing the markdown, once per symbol and collection
//
// Different symbols are processed concurrently on a worker pool. A failure
// aborts only the symbol it belongs to.
package ingestion
