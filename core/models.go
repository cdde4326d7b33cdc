package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// FormType10K is the only filing form the pipeline processes today.
const FormType10K = "10-K"

// DocumentID returns the stable identifier of a filing document.
func DocumentID(symbol, formType string) ID {
	return IDFromContent(symbol + ":" + formType)
}

// Well-known chunk metadata keys.
const (
	MetaSymbol        = "symbol"
	MetaFilingType    = "filing_type"
	MetaDateProcessed = "date_processed"
	MetaSource        = "source"
	MetaSections      = "sections"
	MetaIngestionID   = "ingestion_id"
)

// DocumentState is the lifecycle position of one filing document.
type DocumentState int

const (
	// StateNotFetched means no cached copy exists.
	StateNotFetched DocumentState = iota
	// StateCached means raw bytes are on disk but have not been indexed.
	StateCached
	// StateIngested is terminal: the rendered document has been indexed.
	StateIngested
)

func (s DocumentState) String() string {
	switch s {
	case StateNotFetched:
		return "not_fetched"
	case StateCached:
		return "cached"
	case StateIngested:
		return "ingested"
	default:
		return "unknown"
	}
}

// FilingDocument is a raw filing held by the cache store.
type FilingDocument struct {
	Symbol   string
	FormType string
	Content  []byte
	Path     string
	CachedAt time.Time
}

// Chunk is a bounded span of rendered filing text stored in a collection.
type Chunk struct {
	Id         ID
	Collection string
	DocumentID ID
	Index      int // Position within its ingestion call
	Offset     int // Start offset in characters within the ingested text
	Text       string
	Vector     []float32
	Metadata   map[string]string
	InsertedAt time.Time
}

// CollectionInfo describes a named partition of the vector index.
type CollectionInfo struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Chunks    int       `json:"chunks"`
	Documents int       `json:"documents"`
}

// SearchResult is a stored chunk paired with its similarity to a query vector.
type SearchResult struct {
	Chunk *Chunk
	Score float32
}

// Hit is one ranked retrieval result handed to callers.
type Hit struct {
	Rank        int               `json:"rank"`
	Score       float64           `json:"similarity_score"`
	Content     string            `json:"content"`
	FullContent string            `json:"full_content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
