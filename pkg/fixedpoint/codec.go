package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

var (
	// ErrNotFinite is returned when a NaN or infinite value is quantized.
	ErrNotFinite = errors.New("fixedpoint: value is not finite")

	// ErrOutOfRange is returned when a value does not fit the configured precision.
	ErrOutOfRange = errors.New("fixedpoint: value out of range")

	// ErrNotIndicator is returned when a row is not a one-hot indicator.
	ErrNotIndicator = errors.New("fixedpoint: not an indicator row")
)

// Check reports whether x can be quantized under c.
func (c Config) Check(x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: %v", ErrNotFinite, x)
	}
	if math.Abs(x) >= c.MaxValue() {
		return fmt.Errorf("%w: |%v| >= 2^%d", ErrOutOfRange, x, c.PrecisionBits)
	}
	return nil
}

// QuantizeVector quantizes each component of v.
func (c Config) QuantizeVector(v []float64) ([]*big.Int, error) {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		if err := c.Check(x); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = c.Quantize(x)
	}
	return out, nil
}

// QuantizeMatrix quantizes a list of vectors. All vectors must share the
// dimension of the first one.
func (c Config) QuantizeMatrix(vs [][]float64) ([][]*big.Int, error) {
	out := make([][]*big.Int, len(vs))
	for i, v := range vs {
		if len(v) != len(vs[0]) {
			return nil, fmt.Errorf("vector %d: %w: %d != %d", i, ErrLengthMismatch, len(v), len(vs[0]))
		}
		q, err := c.QuantizeVector(v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = q
	}
	return out, nil
}

// DequantizeVector decodes each component of v.
func (c Config) DequantizeVector(v []*big.Int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = c.Dequantize(x)
	}
	return out
}

// DequantizeMatrix decodes a list of vectors.
func (c Config) DequantizeMatrix(vs [][]*big.Int) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = c.DequantizeVector(v)
	}
	return out
}

// Assign quantizes v into witness values ready to be placed in a circuit
// assignment.
func (c Config) Assign(v []float64) ([]frontend.Variable, error) {
	q, err := c.QuantizeVector(v)
	if err != nil {
		return nil, err
	}
	out := make([]frontend.Variable, len(q))
	for i := range q {
		out[i] = q[i]
	}
	return out, nil
}

// AssignMatrix is Assign for a list of vectors.
func (c Config) AssignMatrix(vs [][]float64) ([][]frontend.Variable, error) {
	q, err := c.QuantizeMatrix(vs)
	if err != nil {
		return nil, err
	}
	out := make([][]frontend.Variable, len(q))
	for i, row := range q {
		out[i] = make([]frontend.Variable, len(row))
		for j := range row {
			out[i][j] = row[j]
		}
	}
	return out, nil
}

// OneHot returns the quantized indicator matrix for a cluster assignment:
// row i holds 1.0 at column ids[i] and 0 elsewhere.
func (c Config) OneHot(ids []int, k int) ([][]*big.Int, error) {
	out := make([][]*big.Int, len(ids))
	for i, id := range ids {
		if id < 0 || id >= k {
			return nil, fmt.Errorf("%w: row %d selects %d of %d", ErrNotIndicator, i, id, k)
		}
		row := make([]*big.Int, k)
		for j := range row {
			row[j] = new(big.Int)
		}
		row[id] = c.Scale()
		out[i] = row
	}
	return out, nil
}

// IndicatorIDs inverts OneHot. Each row must contain exactly one entry equal
// to the quantized 1.0 and zeros elsewhere.
func (c Config) IndicatorIDs(rows [][]*big.Int) ([]int, error) {
	one := c.Scale()
	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = -1
		for j, v := range row {
			switch {
			case v.Sign() == 0:
			case v.Cmp(one) == 0 && ids[i] < 0:
				ids[i] = j
			default:
				return nil, fmt.Errorf("%w: row %d column %d", ErrNotIndicator, i, j)
			}
		}
		if ids[i] < 0 {
			return nil, fmt.Errorf("%w: row %d is empty", ErrNotIndicator, i)
		}
	}
	return ids, nil
}
