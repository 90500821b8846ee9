package testutil

import (
	"context"
	"hash/fnv"
	"math"
)

// FakeEmbedder produces deterministic vectors derived from the input text.
// Identical texts embed identically, so nearest-neighbour assertions are
// stable across runs.
type FakeEmbedder struct {
	// Dim is the vector dimensionality; defaults to 768 to match the schema.
	Dim int
}

// Embed hashes the text into a unit-normalized vector.
func (f *FakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := f.Dim
	if dim <= 0 {
		dim = 768
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// xorshift keeps each component reproducible from the seed.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}
