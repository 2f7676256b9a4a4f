// Package circuits assembles the fixed-point, distance and vector-database
// gadgets into provable circuits, and provides the compile, prove and verify
// pipeline for them.
//
// Every circuit comes in two flavours built from the same Params:
//   - New*Circuit allocates the shape used for compilation.
//   - New*Assignment computes a full witness from plain float64 data.
//
// Private inputs (vectors) never leave the prover; public inputs are the
// values a verifier must agree on (a Merkle root, a query, a claimed result).
package circuits

import (
	"fmt"
	"math"

	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

// Params holds the compile-time settings shared by all circuits.
type Params struct {
	// FixedPoint selects the precision of the quantized arithmetic.
	FixedPoint fixedpoint.Config `toml:"fixed_point"`

	// Metric is the distance used by the distance, nearest-vector and
	// k-means circuits.
	Metric distance.Metric `toml:"metric"`

	// Hasher is used for Merkle commitments.
	Hasher vectordb.Hasher `toml:"hasher"`

	// KMeans fixes the cluster and iteration counts.
	KMeans vectordb.KMeansParams `toml:"kmeans"`

	// Tolerance is the largest accepted gap between a real-valued result
	// computed in the circuit and its claimed public value.
	Tolerance float64 `toml:"tolerance"`
}

// DefaultParams returns Params with sensible defaults.
func DefaultParams() Params {
	return Params{
		FixedPoint: fixedpoint.DefaultConfig(),
		Metric:     distance.MetricEuclidean,
		Hasher:     vectordb.HasherPoseidon2,
		KMeans:     vectordb.KMeansParams{Clusters: 2, Iterations: 5},
		Tolerance:  1e-4,
	}
}

// Validate checks the parameters for errors.
func (p Params) Validate() error {
	if err := p.FixedPoint.Validate(); err != nil {
		return err
	}
	if _, err := distance.ParseMetric(string(p.Metric)); err != nil {
		return err
	}
	if _, err := vectordb.ParseHasher(string(p.Hasher)); err != nil {
		return err
	}
	if err := p.KMeans.Validate(); err != nil {
		return err
	}
	if math.IsNaN(p.Tolerance) || p.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrInvalidParams, p.Tolerance)
	}
	if err := p.FixedPoint.Check(p.Tolerance); err != nil {
		return fmt.Errorf("%w: tolerance: %v", ErrInvalidParams, err)
	}
	return nil
}

// key identifies the compile-time settings in cache keys.
func (p Params) key() string {
	return fmt.Sprintf("p%d/l%d/%s/%s/k%d/i%d/t%g",
		p.FixedPoint.PrecisionBits, p.FixedPoint.LookupBits,
		p.Metric, p.Hasher, p.KMeans.Clusters, p.KMeans.Iterations, p.Tolerance)
}
