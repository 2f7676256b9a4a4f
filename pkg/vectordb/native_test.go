package vectordb

import (
	"math"
	"math/big"
	"testing"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

func nativeEuclidean(assert *test.Assert, cfg fixedpoint.Config) distance.NativeFunc {
	dist, err := distance.Native(cfg, distance.MetricEuclidean)
	assert.NoError(err)
	return dist
}

func quantizeMatrix(assert *test.Assert, cfg fixedpoint.Config, vs [][]float64) [][]*big.Int {
	q, err := cfg.QuantizeMatrix(vs)
	assert.NoError(err)
	return q
}

func variableMatrix(m [][]*big.Int) [][]frontend.Variable {
	out := make([][]frontend.Variable, len(m))
	for i, row := range m {
		out[i] = make([]frontend.Variable, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}

func TestComputeNearestVector_NearTie(t *testing.T) {
	assert := test.NewAssert(t)
	cfg := fixedpoint.DefaultConfig()

	// the squared 2^-20 offset rounds to zero, so both vectors sit at distance 1
	query := []float64{0, 0}
	vectors := [][]float64{{1, 0}, {1, math.Ldexp(1, -20)}, {3, 3}}

	q, err := cfg.QuantizeVector(query)
	assert.NoError(err)
	nearest, matches, err := ComputeNearestVector(cfg, q, quantizeMatrix(assert, cfg, vectors), nativeEuclidean(assert, cfg))
	assert.NoError(err)
	assert.Equal([]int{0, 1}, matches)

	want, err := cfg.QuantizeVector([]float64{2, math.Ldexp(1, -20)})
	assert.NoError(err)
	for i := range want {
		assert.Zero(want[i].Cmp(nearest[i]), "component %d", i)
	}

	circuit, assignment := newNearestPair(assert, cfg, distance.MetricEuclidean, query, vectors,
		[]float64{2, math.Ldexp(1, -20)}, []int{1, 1, 0})
	assert.NoError(isSolved(circuit, assignment))
}

func TestComputeNearestVector_Errors(t *testing.T) {
	assert := test.NewAssert(t)
	cfg := fixedpoint.DefaultConfig()
	dist := nativeEuclidean(assert, cfg)

	q, err := cfg.QuantizeVector([]float64{1, 2})
	assert.NoError(err)

	_, _, err = ComputeNearestVector(cfg, q, nil, dist)
	assert.ErrorIs(err, ErrEmptyDatabase)

	_, _, err = ComputeNearestVector(cfg, q, quantizeMatrix(assert, cfg, [][]float64{{1, 2}, {3}}), dist)
	assert.ErrorIs(err, ErrDimensionMismatch)

	_, _, err = ComputeNearestVector(cfg, q, quantizeMatrix(assert, cfg, [][]float64{{1, 2, 3}}), dist)
	assert.ErrorIs(err, ErrDimensionMismatch)
}

func TestComputeKMeans_TiedVectorJoinsBothClusters(t *testing.T) {
	assert := test.NewAssert(t)
	cfg := fixedpoint.DefaultConfig()
	params := KMeansParams{Clusters: 2, Iterations: 1}

	// 1 is equally far from the seeds 0 and 2
	vectors := [][]float64{{0}, {2}, {1}, {5}}
	res, err := ComputeKMeans(cfg, quantizeMatrix(assert, cfg, vectors), params, nativeEuclidean(assert, cfg))
	assert.NoError(err)

	one, zero := cfg.Scale(), new(big.Int)
	wantIndicators := [][]*big.Int{{one, zero}, {zero, one}, {one, one}, {zero, one}}
	for i := range wantIndicators {
		for j := range wantIndicators[i] {
			assert.Zero(wantIndicators[i][j].Cmp(res.Indicators[i][j]), "indicator %d,%d", i, j)
		}
	}

	assert.Zero(cfg.Quantize(0.5).Cmp(res.Centroids[0][0]))
	third := new(big.Int).Lsh(big.NewInt(8), uint(cfg.PrecisionBits))
	third.Div(third, big.NewInt(3))
	assert.Zero(third.Cmp(res.Centroids[1][0]))

	vs, err := cfg.AssignMatrix(vectors)
	assert.NoError(err)
	circuit := &kmeansCircuit{
		Vectors:    allocMatrix(len(vectors), 1),
		Centroids:  allocMatrix(params.Clusters, 1),
		Indicators: allocMatrix(len(vectors), params.Clusters),
		Config:     cfg,
		Params:     params,
	}
	assignment := &kmeansCircuit{
		Vectors:    vs,
		Centroids:  variableMatrix(res.Centroids),
		Indicators: variableMatrix(res.Indicators),
		Tolerance:  0,
		Config:     cfg,
		Params:     params,
	}
	assert.NoError(isSolved(circuit, assignment))
}

func TestComputeKMeans_Converges(t *testing.T) {
	assert := test.NewAssert(t)
	cfg := fixedpoint.DefaultConfig()

	vectors := [][]float64{{1, 1}, {2, 1}, {4, 3}, {5, 4}}
	res, err := ComputeKMeans(cfg, quantizeMatrix(assert, cfg, vectors),
		KMeansParams{Clusters: 2, Iterations: 10}, nativeEuclidean(assert, cfg))
	assert.NoError(err)

	want := quantizeMatrix(assert, cfg, [][]float64{{1.5, 1}, {4.5, 3.5}})
	for j := range want {
		for d := range want[j] {
			assert.Zero(want[j][d].Cmp(res.Centroids[j][d]), "centroid %d component %d", j, d)
		}
	}
	for i, cluster := range []int{0, 0, 1, 1} {
		assert.Zero(cfg.Scale().Cmp(res.Indicators[i][cluster]), "vector %d", i)
		assert.Zero(res.Indicators[i][1-cluster].Sign(), "vector %d", i)
	}
}

func TestComputeKMeans_Errors(t *testing.T) {
	assert := test.NewAssert(t)
	cfg := fixedpoint.DefaultConfig()
	dist := nativeEuclidean(assert, cfg)

	vectors := quantizeMatrix(assert, cfg, [][]float64{{8, 6}, {7, 5}, {3, 0}, {7, 1}, {8, 0}})

	_, err := ComputeKMeans(cfg, vectors, KMeansParams{Clusters: 3, Iterations: 1}, dist)
	assert.NoError(err)
	_, err = ComputeKMeans(cfg, vectors, KMeansParams{Clusters: 3, Iterations: 2}, dist)
	assert.ErrorIs(err, ErrEmptyCluster)

	_, err = ComputeKMeans(cfg, vectors, KMeansParams{Clusters: 5, Iterations: 1}, dist)
	assert.ErrorIs(err, ErrTooFewVectors)

	_, err = ComputeKMeans(cfg, vectors, KMeansParams{Clusters: 0, Iterations: 1}, dist)
	assert.ErrorIs(err, ErrInvalidParams)

	_, err = ComputeKMeans(cfg, nil, KMeansParams{Clusters: 1, Iterations: 1}, dist)
	assert.ErrorIs(err, ErrEmptyDatabase)
}
