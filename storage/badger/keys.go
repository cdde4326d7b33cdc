package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/filingrag/core"
)

// Key prefixes for different data types.
// Every prefix is terminated by ':' so that scanning one never matches another.
const (
	collectionPrefix = "coll"
	chunkPrefix      = "chunk"
	chunkIDSeqPrefix = "chunkseq"
	docStatePrefix   = "docst"
)

// makeCollectionKey generates the key of a collection record.
func makeCollectionKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, name))
}

// makeCollectionScanPrefix matches every collection record.
func makeCollectionScanPrefix() []byte {
	return []byte(collectionPrefix + ":")
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:collection:id
func makeChunkKey(collection string, id core.ID) []byte {
	prefix := makeChunkScanPrefix(collection)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic order follows insertion order
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkScanPrefix matches every chunk of one collection.
func makeChunkScanPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", chunkPrefix, collection))
}

// makeChunkSeqKey names the ID sequence of a collection.
func makeChunkSeqKey(collection string) string {
	return fmt.Sprintf("%s:%s", chunkIDSeqPrefix, collection)
}

// makeDocStateKey generates a key for a document's ingestion mark.
// Format: prefix:collection:symbol
func makeDocStateKey(collection, symbol string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", docStatePrefix, collection, symbol))
}

// makeDocStateScanPrefix matches every document state of one collection.
func makeDocStateScanPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", docStatePrefix, collection))
}
