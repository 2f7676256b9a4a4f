package reference

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Centroid accumulates the running average of the vectors assigned to a
// cluster.
type Centroid struct {
	// Vector is the current mean.
	Vector []float64

	// Count is the number of vectors that contributed to Vector.
	Count int
}

// NewCentroid returns an empty centroid of the given dimension.
func NewCentroid(dimensions int) *Centroid {
	return &Centroid{Vector: make([]float64, dimensions)}
}

// Add incorporates v into the running average:
//
//	mean = mean * (n-1)/n + v * 1/n
//
// where n is the count after this update.
func (c *Centroid) Add(v []float64) error {
	if len(v) != len(c.Vector) {
		return ErrDimensionMismatch
	}
	c.Count++
	weight := 1 / float64(c.Count)
	floats.Scale(1-weight, c.Vector)
	floats.AddScaled(c.Vector, weight, v)
	return nil
}

// KMeansResult holds the final centroids and the cluster id of each vector
// computed during the last iteration.
type KMeansResult struct {
	Centroids   [][]float64
	Assignments []int
}

// Sizes returns the number of vectors assigned to each cluster.
func (r *KMeansResult) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, id := range r.Assignments {
		sizes[id]++
	}
	return sizes
}

// KMeans runs Lloyd's algorithm for a fixed number of iterations. The first k
// vectors seed the centroids and each vector joins the first closest centroid.
// Like the circuit, it fails when a cluster becomes empty.
func KMeans(vectors [][]float64, k, iterations int, dist Func) (*KMeansResult, error) {
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	if k <= 0 || iterations <= 0 {
		return nil, fmt.Errorf("reference: k and iterations must be positive, got %d and %d", k, iterations)
	}
	if k >= len(vectors) {
		return nil, fmt.Errorf("%w: k = %d, %d vectors", ErrTooFewVectors, k, len(vectors))
	}

	centroids := make([][]float64, k)
	for i := range centroids {
		centroids[i] = append([]float64(nil), vectors[i]...)
	}
	assignments := make([]int, len(vectors))

	for iter := 0; iter < iterations; iter++ {
		for i, v := range vectors {
			m, err := NearestVector(v, centroids, dist)
			if err != nil {
				return nil, err
			}
			assignments[i] = m.Index
		}

		next := make([]*Centroid, k)
		for j := range next {
			next[j] = NewCentroid(len(vectors[0]))
		}
		for i, v := range vectors {
			if err := next[assignments[i]].Add(v); err != nil {
				return nil, err
			}
		}
		for j, c := range next {
			if c.Count == 0 {
				return nil, fmt.Errorf("%w: cluster %d in iteration %d", ErrEmptyCluster, j, iter)
			}
			centroids[j] = c.Vector
		}
	}

	return &KMeansResult{Centroids: centroids, Assignments: assignments}, nil
}

// SelectCluster returns the vectors assigned to cluster id, in input order.
func SelectCluster(vectors [][]float64, assignments []int, id int) [][]float64 {
	var out [][]float64
	for i, v := range vectors {
		if i < len(assignments) && assignments[i] == id {
			out = append(out, v)
		}
	}
	return out
}
