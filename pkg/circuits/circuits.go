package circuits

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

// Circuit is a circuit whose compiled form is fully determined by Shape.
type Circuit interface {
	frontend.Circuit

	// Shape identifies the constraint system: two circuits with the same
	// shape compile to the same keys.
	Shape() string
}

var (
	_ Circuit = (*DistanceCircuit)(nil)
	_ Circuit = (*NearestVectorCircuit)(nil)
	_ Circuit = (*KMeansCircuit)(nil)
	_ Circuit = (*MerkleCircuit)(nil)
)

// DistanceCircuit proves that the distance between two private vectors is
// within Params.Tolerance of the public Distance.
type DistanceCircuit struct {
	A, B     []frontend.Variable
	Distance frontend.Variable `gnark:",public"`

	Params Params `gnark:"-"`
}

// NewDistanceCircuit allocates a DistanceCircuit for vectors of length dim.
func NewDistanceCircuit(params Params, dim int) *DistanceCircuit {
	return &DistanceCircuit{
		A:      make([]frontend.Variable, dim),
		B:      make([]frontend.Variable, dim),
		Params: params,
	}
}

// NewDistanceAssignment builds the witness for the distance between a and b.
// The claimed distance is computed with the native arithmetic of the chip, so
// it matches the circuit exactly.
func NewDistanceAssignment(params Params, a, b []float64) (*DistanceCircuit, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(a) == 0 || len(a) != len(b) {
		return nil, fmt.Errorf("%w: vectors have %d and %d components", ErrInvalidInput, len(a), len(b))
	}
	dist, err := distance.Native(params.FixedPoint, params.Metric)
	if err != nil {
		return nil, err
	}

	cfg := params.FixedPoint
	qa, err := quantize(cfg, [][]float64{a})
	if err != nil {
		return nil, err
	}
	qb, err := quantize(cfg, [][]float64{b})
	if err != nil {
		return nil, err
	}

	d, err := dist(cfg.SignedVector(qa[0]), cfg.SignedVector(qb[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: distance: %w", ErrInvalidInput, err)
	}
	claim := cfg.Reduce(d)
	if err := cfg.Check(cfg.Dequantize(claim)); err != nil {
		return nil, fmt.Errorf("%w: distance: %w", ErrInvalidInput, err)
	}

	return &DistanceCircuit{
		A:        variables(qa[0]),
		B:        variables(qb[0]),
		Distance: claim,
		Params:   params,
	}, nil
}

// Define implements frontend.Circuit.
func (c *DistanceCircuit) Define(api frontend.API) error {
	fp, _, dist, err := c.Params.chips(api)
	if err != nil {
		return err
	}
	got, err := dist(c.A, c.B)
	if err != nil {
		return err
	}
	fp.AssertClose(got, c.Distance, fp.Constant(c.Params.Tolerance))
	return nil
}

// Shape implements Circuit.
func (c *DistanceCircuit) Shape() string {
	return fmt.Sprintf("distance/%s/d%d/%d", c.Params.key(), len(c.A), len(c.B))
}

// NearestVectorCircuit proves that Nearest is the vector of a committed
// database closest to a public query. The database stays private; only its
// Merkle root is public.
//
// When several vectors tie, Nearest is the component-wise sum of the tied
// vectors.
type NearestVectorCircuit struct {
	Query   []frontend.Variable `gnark:",public"`
	Vectors [][]frontend.Variable
	Root    frontend.Variable   `gnark:",public"`
	Nearest []frontend.Variable `gnark:",public"`

	Params Params `gnark:"-"`
}

// NewNearestVectorCircuit allocates a NearestVectorCircuit for n vectors of
// length dim.
func NewNearestVectorCircuit(params Params, n, dim int) *NearestVectorCircuit {
	return &NearestVectorCircuit{
		Query:   make([]frontend.Variable, dim),
		Vectors: allocMatrix(n, dim),
		Nearest: make([]frontend.Variable, dim),
		Params:  params,
	}
}

// NewNearestVectorAssignment builds the witness for a search of query over
// vectors.
func NewNearestVectorAssignment(params Params, query []float64, vectors [][]float64) (*NearestVectorCircuit, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	dist, err := distance.Native(params.FixedPoint, params.Metric)
	if err != nil {
		return nil, err
	}

	cfg := params.FixedPoint
	qv, err := quantize(cfg, vectors)
	if err != nil {
		return nil, err
	}
	qq, err := quantize(cfg, [][]float64{query})
	if err != nil {
		return nil, err
	}
	if len(qq[0]) != len(qv[0]) {
		return nil, fmt.Errorf("%w: query has %d components, want %d", ErrInvalidInput, len(qq[0]), len(qv[0]))
	}

	result, _, err := vectordb.ComputeNearestVector(cfg, qq[0], qv, dist)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	root, err := vectordb.MerkleRoot(params.Hasher, qv)
	if err != nil {
		return nil, err
	}

	return &NearestVectorCircuit{
		Query:   variables(qq[0]),
		Vectors: variableMatrix(qv),
		Root:    root,
		Nearest: variables(result),
		Params:  params,
	}, nil
}

// Define implements frontend.Circuit.
func (c *NearestVectorCircuit) Define(api frontend.API) error {
	_, db, dist, err := c.Params.chips(api)
	if err != nil {
		return err
	}
	root, err := db.MerkleCommitment(c.Vectors)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.Root)

	nearest, _, err := db.NearestVector(c.Query, c.Vectors, dist)
	if err != nil {
		return err
	}
	if len(nearest) != len(c.Nearest) {
		return fmt.Errorf("%w: result has %d components, want %d", vectordb.ErrDimensionMismatch, len(c.Nearest), len(nearest))
	}
	for j := range nearest {
		api.AssertIsEqual(nearest[j], c.Nearest[j])
	}
	return nil
}

// Shape implements Circuit.
func (c *NearestVectorCircuit) Shape() string {
	return fmt.Sprintf("nearest/%s/q%d/%s", c.Params.key(), len(c.Query), matrixShape(c.Vectors))
}

// KMeansCircuit proves that Centroids and Indicators are the outcome of
// k-means over a committed private database.
type KMeansCircuit struct {
	Vectors    [][]frontend.Variable
	Root       frontend.Variable     `gnark:",public"`
	Centroids  [][]frontend.Variable `gnark:",public"`
	Indicators [][]frontend.Variable `gnark:",public"`

	Params Params `gnark:"-"`
}

// NewKMeansCircuit allocates a KMeansCircuit for n vectors of length dim.
func NewKMeansCircuit(params Params, n, dim int) *KMeansCircuit {
	return &KMeansCircuit{
		Vectors:    allocMatrix(n, dim),
		Centroids:  allocMatrix(params.KMeans.Clusters, dim),
		Indicators: allocMatrix(n, params.KMeans.Clusters),
		Params:     params,
	}
}

// NewKMeansAssignment clusters vectors and builds the witness. It fails
// when a cluster becomes empty, since the circuit could not be solved.
func NewKMeansAssignment(params Params, vectors [][]float64) (*KMeansCircuit, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	dist, err := distance.Native(params.FixedPoint, params.Metric)
	if err != nil {
		return nil, err
	}

	qv, err := quantize(params.FixedPoint, vectors)
	if err != nil {
		return nil, err
	}
	res, err := vectordb.ComputeKMeans(params.FixedPoint, qv, params.KMeans, dist)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	root, err := vectordb.MerkleRoot(params.Hasher, qv)
	if err != nil {
		return nil, err
	}

	return &KMeansCircuit{
		Vectors:    variableMatrix(qv),
		Root:       root,
		Centroids:  variableMatrix(res.Centroids),
		Indicators: variableMatrix(res.Indicators),
		Params:     params,
	}, nil
}

// Define implements frontend.Circuit.
func (c *KMeansCircuit) Define(api frontend.API) error {
	fp, db, dist, err := c.Params.chips(api)
	if err != nil {
		return err
	}
	root, err := db.MerkleCommitment(c.Vectors)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.Root)

	res, err := db.KMeans(c.Vectors, c.Params.KMeans, dist)
	if err != nil {
		return err
	}
	if len(c.Centroids) != len(res.Centroids) || len(c.Indicators) != len(res.Indicators) {
		return fmt.Errorf("%w: claimed %d centroids and %d indicator rows",
			vectordb.ErrDimensionMismatch, len(c.Centroids), len(c.Indicators))
	}

	tolerance := fp.Constant(c.Params.Tolerance)
	for j := range res.Centroids {
		if err := fp.AssertVectorClose(res.Centroids[j], c.Centroids[j], tolerance); err != nil {
			return err
		}
	}
	for i := range res.Indicators {
		if len(c.Indicators[i]) != len(res.Indicators[i]) {
			return fmt.Errorf("%w: indicator row %d", vectordb.ErrDimensionMismatch, i)
		}
		for j := range res.Indicators[i] {
			api.AssertIsEqual(res.Indicators[i][j], c.Indicators[i][j])
		}
	}
	return nil
}

// Shape implements Circuit.
func (c *KMeansCircuit) Shape() string {
	return fmt.Sprintf("kmeans/%s/%s", c.Params.key(), matrixShape(c.Vectors))
}

// MerkleCircuit proves knowledge of a database with the public Merkle root.
type MerkleCircuit struct {
	Vectors [][]frontend.Variable
	Root    frontend.Variable `gnark:",public"`

	Params Params `gnark:"-"`
}

// NewMerkleCircuit allocates a MerkleCircuit for n vectors of length dim.
func NewMerkleCircuit(params Params, n, dim int) *MerkleCircuit {
	return &MerkleCircuit{
		Vectors: allocMatrix(n, dim),
		Params:  params,
	}
}

// NewMerkleAssignment builds the witness committing to vectors.
func NewMerkleAssignment(params Params, vectors [][]float64) (*MerkleCircuit, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	qv, err := quantize(params.FixedPoint, vectors)
	if err != nil {
		return nil, err
	}
	root, err := vectordb.MerkleRoot(params.Hasher, qv)
	if err != nil {
		return nil, err
	}
	return &MerkleCircuit{
		Vectors: variableMatrix(qv),
		Root:    root,
		Params:  params,
	}, nil
}

// Define implements frontend.Circuit.
func (c *MerkleCircuit) Define(api frontend.API) error {
	_, db, _, err := c.Params.chips(api)
	if err != nil {
		return err
	}
	root, err := db.MerkleCommitment(c.Vectors)
	if err != nil {
		return err
	}
	api.AssertIsEqual(root, c.Root)
	return nil
}

// Shape implements Circuit.
func (c *MerkleCircuit) Shape() string {
	return fmt.Sprintf("merkle/%s/%s", c.Params.key(), matrixShape(c.Vectors))
}

// chips builds the gadgets shared by all circuits.
func (p Params) chips(api frontend.API) (*fixedpoint.Chip, *vectordb.Chip, distance.Func, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, nil, err
	}
	fp, err := fixedpoint.New(api, p.FixedPoint)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := vectordb.New(fp, p.Hasher)
	if err != nil {
		return nil, nil, nil, err
	}
	dist, err := db.Distance().Func(p.Metric)
	if err != nil {
		return nil, nil, nil, err
	}
	return fp, db, dist, nil
}

// quantize checks that vectors form a non-empty matrix and quantizes it.
func quantize(cfg fixedpoint.Config, vectors [][]float64) ([][]*big.Int, error) {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: no vectors", ErrInvalidInput)
	}
	q, err := cfg.QuantizeMatrix(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return q, nil
}

func allocMatrix(n, dim int) [][]frontend.Variable {
	m := make([][]frontend.Variable, n)
	for i := range m {
		m[i] = make([]frontend.Variable, dim)
	}
	return m
}

func variables(v []*big.Int) []frontend.Variable {
	out := make([]frontend.Variable, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func variableMatrix(m [][]*big.Int) [][]frontend.Variable {
	out := make([][]frontend.Variable, len(m))
	for i, row := range m {
		out[i] = variables(row)
	}
	return out
}

func matrixShape(m [][]frontend.Variable) string {
	if len(m) == 0 {
		return "n0"
	}
	return fmt.Sprintf("n%dd%d", len(m), len(m[0]))
}
