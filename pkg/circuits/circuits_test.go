package circuits

import (
	"math"
	"math/big"
	"testing"

	"github.com/consensys/gnark/frontend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
	"github.com/mymonad/zkvdb/pkg/reference"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

var database = [][]float64{{1, 1}, {2, 1}, {4, 3}, {5, 4}}

// assertQuantized checks that got holds the field element want.
func assertQuantized(t *testing.T, want *big.Int, got frontend.Variable, msgAndArgs ...interface{}) {
	t.Helper()
	v, ok := got.(*big.Int)
	require.True(t, ok, "got %T, want *big.Int", got)
	assert.Zero(t, want.Cmp(v), msgAndArgs...)
}

// smallParams keeps circuits small enough to prove in tests.
func smallParams() Params {
	p := DefaultParams()
	p.FixedPoint = fixedpoint.Config{PrecisionBits: 16, LookupBits: 4}
	p.Tolerance = 1e-2
	return p
}

// TestParams_Validate tests that every parameter is checked.
func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, smallParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
		err    error
	}{
		{"precision", func(p *Params) { p.FixedPoint.PrecisionBits = 4 }, fixedpoint.ErrInvalidConfig},
		{"metric", func(p *Params) { p.Metric = "chebyshev" }, distance.ErrUnknownMetric},
		{"hasher", func(p *Params) { p.Hasher = "sha256" }, vectordb.ErrUnknownHasher},
		{"clusters", func(p *Params) { p.KMeans.Clusters = 0 }, vectordb.ErrInvalidParams},
		{"negative tolerance", func(p *Params) { p.Tolerance = -1 }, ErrInvalidParams},
		{"huge tolerance", func(p *Params) { p.Tolerance = 1e30 }, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tt.err)
		})
	}
}

// TestParseBackend tests backend name parsing.
func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" PLONK ")
	require.NoError(t, err)
	assert.Equal(t, BackendPlonk, b)

	var g Backend
	require.NoError(t, g.UnmarshalText([]byte("groth16")))
	assert.Equal(t, BackendGroth16, g)

	_, err = ParseBackend("stark")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

// TestDistanceCircuit_AllMetrics tests the distance circuit against the
// float reference for every metric.
func TestDistanceCircuit_AllMetrics(t *testing.T) {
	a := []float64{0.5, -1.25, 2}
	b := []float64{1, 0.75, -0.5}

	for _, m := range distance.Metrics() {
		t.Run(string(m), func(t *testing.T) {
			params := DefaultParams()
			params.Metric = m

			assignment, err := NewDistanceAssignment(params, a, b)
			require.NoError(t, err)
			circuit := NewDistanceCircuit(params, len(a))
			assert.Equal(t, circuit.Shape(), assignment.Shape())
			assert.NoError(t, Solve(circuit, assignment))

			ref, err := reference.ForMetric(string(m))
			require.NoError(t, err)
			assignment.Distance = params.FixedPoint.Quantize(ref(a, b) + 0.1)
			assert.ErrorIs(t, Solve(circuit, assignment), ErrUnsatisfied)
		})
	}
}

// TestDistanceAssignment_InvalidInput tests that bad vectors are rejected
// before any circuit is built.
func TestDistanceAssignment_InvalidInput(t *testing.T) {
	params := DefaultParams()

	_, err := NewDistanceAssignment(params, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDistanceAssignment(params, []float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDistanceAssignment(params, []float64{1e10}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, fixedpoint.ErrOutOfRange)

	params.Metric = distance.MetricCosine
	_, err = NewDistanceAssignment(params, []float64{0, 0}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	params.Metric = "chebyshev"
	_, err = NewDistanceAssignment(params, []float64{1}, []float64{1})
	assert.ErrorIs(t, err, distance.ErrUnknownMetric)
}

// TestNearestVectorCircuit tests a search over a committed database.
func TestNearestVectorCircuit(t *testing.T) {
	params := DefaultParams()
	query := []float64{4, 3.9}

	assignment, err := NewNearestVectorAssignment(params, query, database)
	require.NoError(t, err)
	circuit := NewNearestVectorCircuit(params, len(database), 2)
	require.NoError(t, Solve(circuit, assignment))

	cfg := params.FixedPoint
	assertQuantized(t, cfg.Quantize(4), assignment.Nearest[0])
	assertQuantized(t, cfg.Quantize(3), assignment.Nearest[1])

	root, err := vectordb.ComputeMerkleRoot(cfg, params.Hasher, database)
	require.NoError(t, err)
	assert.Equal(t, root, assignment.Root)

	t.Run("wrong nearest", func(t *testing.T) {
		bad, err := NewNearestVectorAssignment(params, query, database)
		require.NoError(t, err)
		bad.Nearest[0], bad.Nearest[1] = cfg.Quantize(5), cfg.Quantize(4)
		assert.ErrorIs(t, Solve(circuit, bad), ErrUnsatisfied)
	})

	t.Run("wrong root", func(t *testing.T) {
		other, err := vectordb.ComputeMerkleRoot(cfg, params.Hasher, [][]float64{{1, 1}, {2, 1}, {4, 3}, {5, 5}})
		require.NoError(t, err)
		bad, err := NewNearestVectorAssignment(params, query, database)
		require.NoError(t, err)
		bad.Root = other
		assert.ErrorIs(t, Solve(circuit, bad), ErrUnsatisfied)
	})
}

// TestNearestVectorCircuit_Ties tests that tied vectors are summed.
func TestNearestVectorCircuit_Ties(t *testing.T) {
	params := DefaultParams()
	cfg := params.FixedPoint

	assignment, err := NewNearestVectorAssignment(params, []float64{3, 2}, database)
	require.NoError(t, err)
	assertQuantized(t, cfg.Quantize(6), assignment.Nearest[0])
	assertQuantized(t, cfg.Quantize(4), assignment.Nearest[1])

	circuit := NewNearestVectorCircuit(params, len(database), 2)
	assert.NoError(t, Solve(circuit, assignment))
}

// TestNearestVectorCircuit_NearTie tests vectors whose distances only tie
// after rounding.
func TestNearestVectorCircuit_NearTie(t *testing.T) {
	params := DefaultParams()
	params.Hasher = vectordb.HasherMiMC
	cfg := params.FixedPoint

	vectors := [][]float64{{1, 0}, {1, math.Ldexp(1, -20)}, {3, 3}}
	assignment, err := NewNearestVectorAssignment(params, []float64{0, 0}, vectors)
	require.NoError(t, err)
	assertQuantized(t, cfg.Quantize(2), assignment.Nearest[0])
	assertQuantized(t, cfg.Quantize(math.Ldexp(1, -20)), assignment.Nearest[1])

	circuit := NewNearestVectorCircuit(params, len(vectors), 2)
	assert.NoError(t, Solve(circuit, assignment))
}

// TestNearestVectorAssignment_InvalidInput tests shape checks.
func TestNearestVectorAssignment_InvalidInput(t *testing.T) {
	params := DefaultParams()

	_, err := NewNearestVectorAssignment(params, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewNearestVectorAssignment(params, []float64{1, 2, 3}, database)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewNearestVectorAssignment(params, []float64{1, 2}, [][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// TestKMeansCircuit tests clustering a committed database.
func TestKMeansCircuit(t *testing.T) {
	params := DefaultParams()
	params.KMeans = vectordb.KMeansParams{Clusters: 2, Iterations: 4}

	assignment, err := NewKMeansAssignment(params, database)
	require.NoError(t, err)
	circuit := NewKMeansCircuit(params, len(database), 2)
	require.NoError(t, Solve(circuit, assignment))

	cfg := params.FixedPoint
	want, err := cfg.QuantizeMatrix([][]float64{{1.5, 1}, {4.5, 3.5}})
	require.NoError(t, err)
	for j := range want {
		for d := range want[j] {
			assertQuantized(t, want[j][d], assignment.Centroids[j][d], "centroid %d component %d", j, d)
		}
	}

	assignment.Centroids[0][0] = cfg.Quantize(1.6)
	assert.ErrorIs(t, Solve(circuit, assignment), ErrUnsatisfied)
}

// TestKMeansCircuit_TiedVector tests that a vector equally close to two
// centroids joins both clusters.
func TestKMeansCircuit_TiedVector(t *testing.T) {
	params := DefaultParams()
	params.KMeans = vectordb.KMeansParams{Clusters: 2, Iterations: 1}
	cfg := params.FixedPoint

	vectors := [][]float64{{0}, {2}, {1}, {5}}
	assignment, err := NewKMeansAssignment(params, vectors)
	require.NoError(t, err)
	assertQuantized(t, cfg.Scale(), assignment.Indicators[2][0])
	assertQuantized(t, cfg.Scale(), assignment.Indicators[2][1])
	assertQuantized(t, cfg.Quantize(0.5), assignment.Centroids[0][0])

	circuit := NewKMeansCircuit(params, len(vectors), 1)
	assert.NoError(t, Solve(circuit, assignment))
}

// TestKMeansAssignment_InvalidInput tests that impossible clusterings are
// rejected.
func TestKMeansAssignment_InvalidInput(t *testing.T) {
	params := DefaultParams()
	params.KMeans = vectordb.KMeansParams{Clusters: 4, Iterations: 1}

	_, err := NewKMeansAssignment(params, database)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, vectordb.ErrTooFewVectors)

	params.KMeans = vectordb.KMeansParams{Clusters: 3, Iterations: 2}
	_, err = NewKMeansAssignment(params, [][]float64{{8, 6}, {7, 5}, {3, 0}, {7, 1}, {8, 0}})
	assert.ErrorIs(t, err, vectordb.ErrEmptyCluster)
}

// TestMerkleCircuit tests the commitment circuit for both hashers.
func TestMerkleCircuit(t *testing.T) {
	for _, h := range []vectordb.Hasher{vectordb.HasherPoseidon2, vectordb.HasherMiMC} {
		t.Run(string(h), func(t *testing.T) {
			params := DefaultParams()
			params.Hasher = h

			assignment, err := NewMerkleAssignment(params, database)
			require.NoError(t, err)
			circuit := NewMerkleCircuit(params, len(database), 2)
			require.NoError(t, Solve(circuit, assignment))

			assignment.Root = 1
			assert.ErrorIs(t, Solve(circuit, assignment), ErrUnsatisfied)
		})
	}
}

// TestShape tests that shapes separate different constraint systems.
func TestShape(t *testing.T) {
	params := DefaultParams()

	assert.Equal(t, NewMerkleCircuit(params, 4, 2).Shape(), NewMerkleCircuit(params, 4, 2).Shape())
	assert.NotEqual(t, NewMerkleCircuit(params, 4, 2).Shape(), NewMerkleCircuit(params, 4, 3).Shape())
	assert.NotEqual(t, NewMerkleCircuit(params, 4, 2).Shape(), NewMerkleCircuit(params, 5, 2).Shape())

	other := params
	other.Hasher = vectordb.HasherMiMC
	assert.NotEqual(t, NewMerkleCircuit(params, 4, 2).Shape(), NewMerkleCircuit(other, 4, 2).Shape())

	assert.NotEqual(t, NewDistanceCircuit(params, 2).Shape(), NewMerkleCircuit(params, 2, 2).Shape())
}
