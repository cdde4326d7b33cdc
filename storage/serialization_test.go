package storage

import (
	"testing"
	"time"

	"github.com/poiesic/filingrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := &core.Chunk{
		Id:         7,
		Collection: "sec10k_chunks",
		Index:      1,
		Offset:     800,
		Text:       "Item 1A. Risk Factors",
		Vector:     []float32{0.1, 0.2},
		Metadata:   map[string]string{core.MetaSymbol: "AAPL"},
		InsertedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestUnmarshalChunk_Invalid(t *testing.T) {
	_, err := UnmarshalChunk([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalTime(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	got, err := UnmarshalTime(MarshalTime(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	zero, err := UnmarshalTime(MarshalTime(time.Time{}))
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestFilter_Matches(t *testing.T) {
	metadata := map[string]string{"symbol": "AAPL", "filing_type": "10-K"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "nil filter", filter: nil, want: true},
		{name: "empty filter", filter: Filter{}, want: true},
		{name: "single match", filter: Filter{"symbol": "AAPL"}, want: true},
		{name: "all pairs match", filter: Filter{"symbol": "AAPL", "filing_type": "10-K"}, want: true},
		{name: "value differs", filter: Filter{"symbol": "MSFT"}, want: false},
		{name: "case sensitive", filter: Filter{"symbol": "aapl"}, want: false},
		{name: "missing key", filter: Filter{"sections": "Item 1A"}, want: false},
		{name: "one of two differs", filter: Filter{"symbol": "AAPL", "filing_type": "10-Q"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(metadata))
		})
	}
}
