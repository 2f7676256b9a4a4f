// Package reference provides plain floating-point implementations of the
// distance, nearest-vector and k-means computations proven by the circuits.
// They are used to build expected public outputs and to cross-check the
// gadgets in tests.
//
// Distance functions follow gonum's convention and panic when the vectors
// have different lengths. Database-level functions return errors instead.
package reference

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptyDatabase is returned when a search is run over no vectors.
	ErrEmptyDatabase = errors.New("reference: empty database")

	// ErrDimensionMismatch is returned when vectors in a set have different lengths.
	ErrDimensionMismatch = errors.New("reference: dimension mismatch")

	// ErrTooFewVectors is returned when k-means has no more vectors than clusters.
	ErrTooFewVectors = errors.New("reference: too few vectors for cluster count")

	// ErrEmptyCluster is returned when a k-means iteration leaves a cluster empty.
	ErrEmptyCluster = errors.New("reference: empty cluster")

	// ErrUnknownMetric is returned by ForMetric for unsupported names.
	ErrUnknownMetric = errors.New("reference: unknown metric")
)

// Func computes a distance between two vectors; smaller is closer.
type Func func(a, b []float64) float64

// ForMetric returns the distance function matching a metric name
// (euclidean, manhattan, cosine, hamming).
func ForMetric(name string) (Func, error) {
	switch name {
	case "euclidean":
		return Euclidean, nil
	case "manhattan":
		return Manhattan, nil
	case "cosine":
		return CosineDistance, nil
	case "hamming":
		return HammingDistance, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// CosineSimilarity returns dot(a, b) / (|a| |b|).
// Returns NaN if either vector is zero, mirroring the circuit which cannot
// produce a proof in that case.
func CosineSimilarity(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return floats.Dot(a, b) / (normA * normB)
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// HammingSimilarity returns the fraction of positions where a and b are
// exactly equal. Callers comparing against a circuit should round both
// vectors through the quantizer first.
func HammingSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("reference: slice lengths do not match")
	}
	if len(a) == 0 {
		return 0
	}
	var matches int
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// HammingDistance returns 1 - HammingSimilarity(a, b).
func HammingDistance(a, b []float64) float64 {
	return 1 - HammingSimilarity(a, b)
}

func checkDimensions(vectors [][]float64) error {
	if len(vectors) == 0 {
		return ErrEmptyDatabase
	}
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: vector %d has %d components, want %d",
				ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
	}
	return nil
}

// Match is the result of a nearest-vector search.
type Match struct {
	Index    int
	Vector   []float64
	Distance float64
}

// NearestVector returns the vector closest to query. The first minimum wins
// on ties.
func NearestVector(query []float64, vectors [][]float64, dist Func) (*Match, error) {
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	if len(query) != len(vectors[0]) {
		return nil, fmt.Errorf("%w: query has %d components, want %d",
			ErrDimensionMismatch, len(query), len(vectors[0]))
	}

	best := &Match{Index: -1, Distance: math.Inf(1)}
	for i, v := range vectors {
		d := dist(query, v)
		if best.Index < 0 || d < best.Distance {
			best.Index, best.Distance = i, d
		}
	}
	best.Vector = append([]float64(nil), vectors[best.Index]...)
	return best, nil
}

// Ties returns the indices of every vector whose distance to query equals
// the minimum.
func Ties(query []float64, vectors [][]float64, dist Func) []int {
	var idx []int
	best := math.Inf(1)
	for i, v := range vectors {
		d := dist(query, v)
		switch {
		case d < best:
			best = d
			idx = append(idx[:0], i)
		case d == best:
			idx = append(idx, i)
		}
	}
	return idx
}
