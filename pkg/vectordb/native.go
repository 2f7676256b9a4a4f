package vectordb

import (
	"fmt"
	"math/big"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

// ComputeNearestVector evaluates NearestVector outside the circuit. Inputs
// and the returned vector are quantized field elements, dist is the native
// counterpart of the gadget metric. It also returns the indices of every
// vector at the minimum distance; the returned vector is their sum.
func ComputeNearestVector(cfg fixedpoint.Config, query []*big.Int, vectors [][]*big.Int, dist distance.NativeFunc) ([]*big.Int, []int, error) {
	if err := checkNativeDimensions(vectors); err != nil {
		return nil, nil, err
	}
	if len(query) != len(vectors[0]) {
		return nil, nil, fmt.Errorf("%w: query has %d components, want %d",
			ErrDimensionMismatch, len(query), len(vectors[0]))
	}

	signed := make([][]*big.Int, len(vectors))
	for i, v := range vectors {
		signed[i] = cfg.SignedVector(v)
	}
	matches, err := closestNative(cfg.SignedVector(query), signed, dist)
	if err != nil {
		return nil, nil, err
	}

	nearest := make([]*big.Int, len(query))
	for j := range nearest {
		sum := new(big.Int)
		for _, i := range matches {
			sum.Add(sum, signed[i][j])
		}
		nearest[j] = cfg.Reduce(sum)
	}
	return nearest, matches, nil
}

// NativeKMeansResult holds the outcome of ComputeKMeans as quantized field
// elements, laid out like KMeansResult.
type NativeKMeansResult struct {
	Centroids  [][]*big.Int
	Indicators [][]*big.Int
}

// ComputeKMeans evaluates KMeans outside the circuit with the same seeding,
// tie handling and rounding. It returns ErrEmptyCluster when a cluster loses
// all of its members, since the circuit cannot be solved then.
func ComputeKMeans(cfg fixedpoint.Config, vectors [][]*big.Int, params KMeansParams, dist distance.NativeFunc) (*NativeKMeansResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := checkNativeDimensions(vectors); err != nil {
		return nil, err
	}
	if params.Clusters >= len(vectors) {
		return nil, fmt.Errorf("%w: %d clusters, %d vectors", ErrTooFewVectors, params.Clusters, len(vectors))
	}

	signed := make([][]*big.Int, len(vectors))
	for i, v := range vectors {
		signed[i] = cfg.SignedVector(v)
	}
	dim := len(signed[0])
	centroids := make([][]*big.Int, params.Clusters)
	copy(centroids, signed)

	one := cfg.Scale()
	var members [][]bool
	for iter := 0; iter < params.Iterations; iter++ {
		members = make([][]bool, len(signed))
		for i, v := range signed {
			matches, err := closestNative(v, centroids, dist)
			if err != nil {
				return nil, fmt.Errorf("iteration %d vector %d: %w", iter, i, err)
			}
			members[i] = make([]bool, params.Clusters)
			for _, j := range matches {
				members[i][j] = true
			}
		}

		next := make([][]*big.Int, params.Clusters)
		for j := range next {
			count := int64(0)
			sums := make([]*big.Int, dim)
			for d := range sums {
				sums[d] = new(big.Int)
			}
			for i, v := range signed {
				if !members[i][j] {
					continue
				}
				count++
				for d := range sums {
					sums[d].Add(sums[d], v[d])
				}
			}
			if count == 0 {
				return nil, fmt.Errorf("%w: cluster %d in iteration %d", ErrEmptyCluster, j, iter)
			}

			size := new(big.Int).Mul(big.NewInt(count), one)
			next[j] = make([]*big.Int, dim)
			for d := range sums {
				c, err := cfg.Div(sums[d], size)
				if err != nil {
					return nil, err
				}
				next[j][d] = c
			}
		}
		centroids = next
	}

	res := &NativeKMeansResult{
		Centroids:  make([][]*big.Int, len(centroids)),
		Indicators: make([][]*big.Int, len(members)),
	}
	for j, c := range centroids {
		res.Centroids[j] = cfg.ReduceVector(c)
	}
	for i, row := range members {
		res.Indicators[i] = make([]*big.Int, params.Clusters)
		for j, in := range row {
			if in {
				res.Indicators[i][j] = new(big.Int).Set(one)
			} else {
				res.Indicators[i][j] = new(big.Int)
			}
		}
	}
	return res, nil
}

// closestNative returns the indices of the candidates at minimum distance
// from query. Inputs are signed.
func closestNative(query []*big.Int, candidates [][]*big.Int, dist distance.NativeFunc) ([]int, error) {
	distances := make([]*big.Int, len(candidates))
	for i, v := range candidates {
		d, err := dist(query, v)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		distances[i] = d
	}

	least := distances[0]
	for _, d := range distances[1:] {
		if d.Cmp(least) < 0 {
			least = d
		}
	}
	var matches []int
	for i, d := range distances {
		if d.Cmp(least) == 0 {
			matches = append(matches, i)
		}
	}
	return matches, nil
}

func checkNativeDimensions(vectors [][]*big.Int) error {
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
