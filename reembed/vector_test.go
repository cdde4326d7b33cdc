package reembed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{name: "unit vector", input: []float32{0, 1, 0}, expected: []float32{0, 1, 0}},
		{name: "scaled", input: []float32{3, 4}, expected: []float32{0.6, 0.8}},
		{name: "negative components", input: []float32{-2, 2}, expected: []float32{-float32(math.Sqrt2) / 2, float32(math.Sqrt2) / 2}},
		{name: "tiny components", input: []float32{1e-4, 2e-4, 2e-4}, expected: []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Len(t, result, len(tt.expected))
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "component %d", i)
			}
			assert.InDelta(t, 1.0, magnitude(result), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := []float32{3, 4}
	NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestNormalizeVector_Degenerate(t *testing.T) {
	assert.Equal(t, []float32{0, 0, 0}, NormalizeVector([]float32{0, 0, 0}))
	assert.Empty(t, NormalizeVector([]float32{}))
	assert.Nil(t, NormalizeVector(nil))
}
