// Package reembed recomputes the vectors of stored chunks after the
// embedding model changes.
//
// Chunks are read in ID order in batches, embedded again, normalized to unit
// length and written back in place. A collection is locked against ingestion
// for the whole run. Progress is reported to an io.Writer.
package reembed
