package vectordb

import (
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/mymonad/zkvdb/pkg/distance"
)

// KMeansParams fixes the shape of a k-means circuit.
type KMeansParams struct {
	// Clusters is the number of centroids K.
	Clusters int `toml:"clusters"`

	// Iterations is the number of Lloyd iterations I. There is no convergence
	// test: every iteration is always unrolled into the circuit.
	Iterations int `toml:"iterations"`
}

// Validate checks the parameters for errors.
func (p KMeansParams) Validate() error {
	if p.Clusters <= 0 {
		return fmt.Errorf("%w: clusters must be positive, got %d", ErrInvalidParams, p.Clusters)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidParams, p.Iterations)
	}
	return nil
}

// KMeansResult holds the outcome of KMeans.
type KMeansResult struct {
	// Centroids are the quantized centroids after the last iteration.
	Centroids [][]frontend.Variable

	// Indicators holds, for each vector, the quantized one-hot row over the
	// clusters computed in the last iteration. Entries are 0 or 1.0.
	Indicators [][]frontend.Variable
}

// KMeans clusters vectors. The first Clusters vectors seed the centroids.
// Each iteration assigns every vector to its closest centroid and moves each
// centroid to the mean of its members.
//
// A cluster left without members makes the centroid division fail, so the
// witness cannot be solved. Ties assign a vector to every tied cluster.
func (c *Chip) KMeans(vectors [][]frontend.Variable, params KMeansParams, dist distance.Func) (*KMeansResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	if params.Clusters >= len(vectors) {
		return nil, fmt.Errorf("%w: %d clusters, %d vectors", ErrTooFewVectors, params.Clusters, len(vectors))
	}

	dim := len(vectors[0])
	centroids := make([][]frontend.Variable, params.Clusters)
	for j := range centroids {
		centroids[j] = append([]frontend.Variable(nil), vectors[j]...)
	}

	var indicators [][]frontend.Variable
	for iter := 0; iter < params.Iterations; iter++ {
		bits := make([][]frontend.Variable, len(vectors))
		for i, v := range vectors {
			row, err := c.closest(v, centroids, dist)
			if err != nil {
				return nil, fmt.Errorf("iteration %d vector %d: %w", iter, i, err)
			}
			bits[i] = row
		}

		indicators = make([][]frontend.Variable, len(vectors))
		for i, row := range bits {
			indicators[i] = make([]frontend.Variable, params.Clusters)
			for j, b := range row {
				indicators[i][j] = c.fp.FromInteger(b)
			}
		}

		next := make([][]frontend.Variable, params.Clusters)
		members := make([]frontend.Variable, len(vectors))
		for j := range next {
			for i := range vectors {
				members[i] = indicators[i][j]
			}
			size := c.fp.Sum(members...)

			next[j] = make([]frontend.Variable, dim)
			masked := make([]frontend.Variable, len(vectors))
			for d := 0; d < dim; d++ {
				for i, v := range vectors {
					masked[i] = c.fp.Select(bits[i][j], v[d], 0)
				}
				next[j][d] = c.fp.QDiv(c.fp.Sum(masked...), size)
			}
		}
		centroids = next
	}

	return &KMeansResult{
		Centroids:  centroids,
		Indicators: indicators,
	}, nil
}
