package ai

import (
	"fmt"

	"github.com/poiesic/docqa/core"
)

// CheckEmbeddings verifies that an embedder returned one vector per input
// and that every vector has the same non-zero dimension. It returns that
// dimension.
func CheckEmbeddings(inputs int, vectors [][]float32) (int, error) {
	if len(vectors) != inputs {
		return 0, fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbedding, inputs, len(vectors))
	}
	if inputs == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty vector", core.ErrEmbedding)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", core.ErrEmbedding, i, len(v), dim)
		}
	}
	return dim, nil
}
