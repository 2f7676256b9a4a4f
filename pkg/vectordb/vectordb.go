// Package vectordb provides verifiable vector-database gadgets: nearest-vector
// search, k-means clustering and Merkle commitments over quantized vectors.
//
// The number of vectors, their dimension, the cluster count and the iteration
// count all shape the circuit and are fixed when Define runs. Indices of
// matches are never revealed; results are rebuilt with select-by-indicator.
package vectordb

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

var (
	// ErrEmptyDatabase is returned when an operation gets no vectors.
	ErrEmptyDatabase = errors.New("vectordb: empty database")

	// ErrDimensionMismatch is returned when vectors do not share one dimension.
	ErrDimensionMismatch = errors.New("vectordb: dimension mismatch")

	// ErrTooFewVectors is returned when k-means has no more vectors than clusters.
	ErrTooFewVectors = errors.New("vectordb: too few vectors for cluster count")

	// ErrInvalidParams is returned when k-means parameters are not positive.
	ErrInvalidParams = errors.New("vectordb: invalid k-means parameters")

	// ErrEmptyCluster is returned by ComputeKMeans when a cluster has no members.
	ErrEmptyCluster = errors.New("vectordb: empty cluster")
)

// Chip composes vector-database gadgets from a fixed-point chip.
type Chip struct {
	fp     *fixedpoint.Chip
	dist   *distance.Chip
	hasher Hasher
}

// New returns a vector-database chip. hasher selects the hash used by
// MerkleCommitment.
func New(fp *fixedpoint.Chip, hasher Hasher) (*Chip, error) {
	if _, err := ParseHasher(string(hasher)); err != nil {
		return nil, err
	}
	return &Chip{
		fp:     fp,
		dist:   distance.New(fp),
		hasher: hasher,
	}, nil
}

// Distance returns the distance chip sharing this chip's fixed-point chip.
func (c *Chip) Distance() *distance.Chip {
	return c.dist
}

func checkDimensions(vectors [][]frontend.Variable) error {
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

// NearestVector returns the vector of vectors closest to query under dist,
// along with the 0/1 indicator of the match. Every candidate is measured.
//
// When several vectors tie for the minimum, each of them gets an indicator of
// 1 and the returned vector is the component-wise sum of the tied vectors.
func (c *Chip) NearestVector(query []frontend.Variable, vectors [][]frontend.Variable, dist distance.Func) ([]frontend.Variable, []frontend.Variable, error) {
	if err := checkDimensions(vectors); err != nil {
		return nil, nil, err
	}
	if len(query) != len(vectors[0]) {
		return nil, nil, fmt.Errorf("%w: query has %d components, want %d",
			ErrDimensionMismatch, len(query), len(vectors[0]))
	}

	indicator, err := c.closest(query, vectors, dist)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.selectVector(vectors, indicator)
	if err != nil {
		return nil, nil, err
	}
	return result, indicator, nil
}

// closest returns the 0/1 indicator of the candidates at minimum distance
// from query.
func (c *Chip) closest(query []frontend.Variable, candidates [][]frontend.Variable, dist distance.Func) ([]frontend.Variable, error) {
	distances := make([]frontend.Variable, len(candidates))
	for i, v := range candidates {
		d, err := dist(query, v)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		distances[i] = d
	}

	least := distances[0]
	for _, d := range distances[1:] {
		least = c.fp.QMin(least, d)
	}

	indicator := make([]frontend.Variable, len(distances))
	for i, d := range distances {
		indicator[i] = c.fp.IsEqual(d, least)
	}
	return indicator, nil
}

// selectVector rebuilds a vector component-wise from an indicator.
func (c *Chip) selectVector(vectors [][]frontend.Variable, indicator []frontend.Variable) ([]frontend.Variable, error) {
	out := make([]frontend.Variable, len(vectors[0]))
	column := make([]frontend.Variable, len(vectors))
	for j := range out {
		for i := range vectors {
			column[i] = vectors[i][j]
		}
		v, err := c.fp.SelectByIndicator(column, indicator)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}
