// Package distance provides distance and similarity gadgets over quantized
// vectors. All gadgets take two vectors of equal, non-zero length; a length
// mismatch is reported by the gadget and aborts circuit construction.
package distance

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

var (
	// ErrLengthMismatch is returned when the two vectors have different lengths.
	ErrLengthMismatch = errors.New("distance: vector length mismatch")

	// ErrEmptyVector is returned when the vectors have no components.
	ErrEmptyVector = errors.New("distance: empty vector")
)

// Func computes a distance between two quantized vectors.
type Func func(a, b []frontend.Variable) (frontend.Variable, error)

// Chip composes distance gadgets from a fixed-point chip.
type Chip struct {
	fp *fixedpoint.Chip
}

// New returns a distance chip using fp for arithmetic.
func New(fp *fixedpoint.Chip) *Chip {
	return &Chip{fp: fp}
}

// FixedPoint returns the underlying fixed-point chip.
func (c *Chip) FixedPoint() *fixedpoint.Chip {
	return c.fp
}

func checkLengths(a, b []frontend.Variable) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return ErrEmptyVector
	}
	return nil
}

func (c *Chip) diff(a, b []frontend.Variable) []frontend.Variable {
	out := make([]frontend.Variable, len(a))
	for i := range a {
		out[i] = c.fp.QSub(a[i], b[i])
	}
	return out
}

// DotProduct returns sum(a[i] * b[i]).
func (c *Chip) DotProduct(a, b []frontend.Variable) (frontend.Variable, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	return c.fp.InnerProduct(a, b)
}

// Euclidean returns sqrt(sum((a[i] - b[i])^2)).
func (c *Chip) Euclidean(a, b []frontend.Variable) (frontend.Variable, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	d := c.diff(a, b)
	sq, err := c.fp.InnerProduct(d, d)
	if err != nil {
		return nil, err
	}
	return c.fp.QSqrt(sq), nil
}

// Manhattan returns sum(|a[i] - b[i]|).
func (c *Chip) Manhattan(a, b []frontend.Variable) (frontend.Variable, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	d := c.diff(a, b)
	for i := range d {
		d[i] = c.fp.QAbs(d[i])
	}
	return c.fp.Sum(d...), nil
}

// CosineSimilarity returns dot(a, b) / (|a| |b|). The prover fails when
// either vector is zero.
func (c *Chip) CosineSimilarity(a, b []frontend.Variable) (frontend.Variable, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	ab, err := c.fp.InnerProduct(a, b)
	if err != nil {
		return nil, err
	}
	aa, err := c.fp.InnerProduct(a, a)
	if err != nil {
		return nil, err
	}
	bb, err := c.fp.InnerProduct(b, b)
	if err != nil {
		return nil, err
	}
	norm := c.fp.QMul(c.fp.QSqrt(aa), c.fp.QSqrt(bb))
	return c.fp.QDiv(ab, norm), nil
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func (c *Chip) CosineDistance(a, b []frontend.Variable) (frontend.Variable, error) {
	sim, err := c.CosineSimilarity(a, b)
	if err != nil {
		return nil, err
	}
	return c.fp.QSub(c.fp.One(), sim), nil
}

// HammingSimilarity returns the fraction of positions where the quantized
// components are equal.
func (c *Chip) HammingSimilarity(a, b []frontend.Variable) (frontend.Variable, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	matches := make([]frontend.Variable, len(a))
	for i := range a {
		matches[i] = c.fp.IsEqual(a[i], b[i])
	}
	count := c.fp.FromInteger(c.fp.Sum(matches...))
	return c.fp.QDiv(count, c.fp.FromInteger(len(a))), nil
}

// HammingDistance returns 1 - HammingSimilarity(a, b).
func (c *Chip) HammingDistance(a, b []frontend.Variable) (frontend.Variable, error) {
	sim, err := c.HammingSimilarity(a, b)
	if err != nil {
		return nil, err
	}
	return c.fp.QSub(c.fp.One(), sim), nil
}
