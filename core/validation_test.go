package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "already normalized", input: "AAPL", want: "AAPL"},
		{name: "lower case with spaces", input: "  msft ", want: "MSFT"},
		{name: "class share", input: "brk.b", want: "BRK.B"},
		{name: "dash", input: "RDS-A", want: "RDS-A"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "too long", input: "ABCDEFGHIJK", wantErr: true},
		{name: "path traversal", input: "../etc", wantErr: true},
		{name: "slash", input: "A/B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSymbol)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("sec10k_chunks"))
	assert.ErrorIs(t, ValidateCollectionName(""), ErrInvalidCollection)
	assert.ErrorIs(t, ValidateCollectionName("a:b"), ErrInvalidCollection)
	assert.ErrorIs(t, ValidateCollectionName("a b"), ErrInvalidCollection)
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid chunk", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Collection: "c", Text: "hello"})
		assert.NoError(t, err)
	})

	t.Run("nil chunk", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	})

	t.Run("empty text", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Collection: "c"})
		assert.ErrorIs(t, err, ErrInvalidChunk)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("bad collection", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Collection: "", Text: "x"})
		assert.ErrorIs(t, err, ErrInvalidCollection)
	})

	t.Run("negative offset", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Collection: "c", Text: "x", Offset: -1})
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})
}
