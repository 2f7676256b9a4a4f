package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/lookup/logderivlookup"
	"github.com/consensys/gnark/std/rangecheck"
)

// Chip implements fixed-point gadgets on top of a frontend.API. Values handled
// by the chip are quantized field elements as described in the package
// documentation.
//
// A Chip is bound to the API of a single Define call and must not be reused
// across circuits.
type Chip struct {
	api frontend.API
	cfg Config
	rc  frontend.Rangechecker

	// lookup tables are built on first use so circuits that never call a
	// transcendental gadget do not pay for them.
	pow2T  logderivlookup.Table
	exp2T  logderivlookup.Table
	log2T  logderivlookup.Table
	recipT logderivlookup.Table
	sinT   logderivlookup.Table
	cosT   logderivlookup.Table
}

// New returns a Chip for cfg.
func New(api frontend.API, cfg Config) (*Chip, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chip{
		api: api,
		cfg: cfg,
		rc:  rangecheck.New(api),
	}, nil
}

// API returns the underlying frontend API.
func (c *Chip) API() frontend.API { return c.api }

// Config returns the encoding used by the chip.
func (c *Chip) Config() Config { return c.cfg }

// Constant returns the quantized constant x.
func (c *Chip) Constant(x float64) frontend.Variable {
	return c.cfg.Quantize(x)
}

// ConstantVector returns the quantized constants for v.
func (c *Chip) ConstantVector(v []float64) []frontend.Variable {
	out := make([]frontend.Variable, len(v))
	for i, x := range v {
		out[i] = c.cfg.Quantize(x)
	}
	return out
}

// Zero returns the quantized 0.0.
func (c *Chip) Zero() frontend.Variable { return 0 }

// One returns the quantized 1.0.
func (c *Chip) One() frontend.Variable {
	return c.cfg.Scale()
}

// FromInteger lifts an integer variable to a quantized value.
func (c *Chip) FromInteger(x frontend.Variable) frontend.Variable {
	return c.api.Mul(x, c.cfg.Scale())
}

func (c *Chip) QAdd(a, b frontend.Variable) frontend.Variable { return c.api.Add(a, b) }

func (c *Chip) QSub(a, b frontend.Variable) frontend.Variable { return c.api.Sub(a, b) }

func (c *Chip) QNeg(a frontend.Variable) frontend.Variable { return c.api.Neg(a) }

// Sum adds values. The sum of no values is 0.
func (c *Chip) Sum(values ...frontend.Variable) frontend.Variable {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	return c.api.Add(values[0], values[1], values[2:]...)
}

// QMul multiplies two quantized values, rounding to the nearest step.
func (c *Chip) QMul(a, b frontend.Variable) frontend.Variable {
	return c.rescale(c.api.Mul(a, b), c.cfg.PrecisionBits)
}

// InnerProduct returns sum(a[i] * b[i]) with a single rescale, which is both
// cheaper and more precise than chaining QMul.
func (c *Chip) InnerProduct(a, b []frontend.Variable) (frontend.Variable, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	products := make([]frontend.Variable, len(a))
	for i := range a {
		products[i] = c.api.Mul(a[i], b[i])
	}
	return c.rescale(c.Sum(products...), c.cfg.PrecisionBits), nil
}

// rescale divides the signed integer x by 2^shift, rounding half up, and
// constrains the result to the valid value range.
func (c *Chip) rescale(x frontend.Variable, shift int) frontend.Variable {
	vb := c.cfg.ValueBits()
	offset := new(big.Int).Add(pow2(vb+shift), pow2(shift-1))
	hi, _ := c.split(c.api.Add(x, offset), shift, vb+1)
	return c.api.Sub(hi, pow2(vb))
}

// split decomposes t into hi * 2^shift + lo with lo < 2^shift and
// hi < 2^hiBits.
func (c *Chip) split(t frontend.Variable, shift, hiBits int) (hi, lo frontend.Variable) {
	out, err := c.api.Compiler().NewHint(splitHint, 2, t, shift)
	if err != nil {
		panic(err)
	}
	hi, lo = out[0], out[1]
	if hiBits == 1 {
		c.api.AssertIsBoolean(hi)
	} else {
		c.rc.Check(hi, hiBits)
	}
	c.rc.Check(lo, shift)
	c.api.AssertIsEqual(c.api.Add(c.api.Mul(hi, pow2(shift)), lo), t)
	return hi, lo
}

// IsNegative returns 1 if a < 0 and 0 otherwise. It also constrains a to the
// valid value range.
func (c *Chip) IsNegative(a frontend.Variable) frontend.Variable {
	vb := c.cfg.ValueBits()
	hi, _ := c.split(c.api.Add(a, pow2(vb)), vb, 1)
	return c.api.Sub(1, hi)
}

// AssertInRange constrains a to the valid value range.
func (c *Chip) AssertInRange(a frontend.Variable) {
	c.IsNegative(a)
}

// IsLessThan returns 1 if a < b and 0 otherwise.
func (c *Chip) IsLessThan(a, b frontend.Variable) frontend.Variable {
	return c.IsNegative(c.api.Sub(a, b))
}

// IsEqual returns 1 if a == b and 0 otherwise.
func (c *Chip) IsEqual(a, b frontend.Variable) frontend.Variable {
	return c.api.IsZero(c.api.Sub(a, b))
}

// IsZero returns 1 if a == 0 and 0 otherwise.
func (c *Chip) IsZero(a frontend.Variable) frontend.Variable {
	return c.api.IsZero(a)
}

// Select returns a if cond is 1 and b if cond is 0. cond must be boolean.
func (c *Chip) Select(cond, a, b frontend.Variable) frontend.Variable {
	return c.api.Select(cond, a, b)
}

func (c *Chip) QAbs(a frontend.Variable) frontend.Variable {
	return c.api.Select(c.IsNegative(a), c.api.Neg(a), a)
}

func (c *Chip) QMin(a, b frontend.Variable) frontend.Variable {
	return c.api.Select(c.IsLessThan(a, b), a, b)
}

func (c *Chip) QMax(a, b frontend.Variable) frontend.Variable {
	return c.api.Select(c.IsLessThan(a, b), b, a)
}

// SelectByIndicator returns sum(values[i] * indicator[i]). With a one-hot
// indicator this picks a single value; with several ones it returns the sum
// of the picked values.
func (c *Chip) SelectByIndicator(values, indicator []frontend.Variable) (frontend.Variable, error) {
	if len(values) != len(indicator) {
		return nil, fmt.Errorf("%w: %d values, %d indicators", ErrLengthMismatch, len(values), len(indicator))
	}
	terms := make([]frontend.Variable, len(values))
	for i := range values {
		terms[i] = c.api.Mul(values[i], indicator[i])
	}
	return c.Sum(terms...), nil
}

// QDiv returns floor(a / b). The prover fails when b is zero.
func (c *Chip) QDiv(a, b frontend.Variable) frontend.Variable {
	p, vb := c.cfg.PrecisionBits, c.cfg.ValueBits()

	neg := c.IsNegative(b)
	absB := c.api.Select(neg, c.api.Neg(b), b)
	num := c.api.Mul(c.api.Select(neg, c.api.Neg(a), a), pow2(p))

	// shift the numerator by 2^vb * |b| so the quotient is non-negative
	t := c.api.Add(num, c.api.Mul(absB, pow2(vb)))
	out, err := c.api.Compiler().NewHint(divHint, 2, t, absB)
	if err != nil {
		panic(err)
	}
	q, r := out[0], out[1]
	c.rc.Check(q, vb+1)
	c.rc.Check(r, vb)
	// r < |b|, which also rules out b == 0
	c.rc.Check(c.api.Sub(absB, c.api.Add(r, 1)), vb)
	c.api.AssertIsEqual(c.api.Add(c.api.Mul(q, absB), r), t)
	return c.api.Sub(q, pow2(vb))
}

// QSqrt returns floor(sqrt(a)) for a >= 0. The prover fails on negative input.
func (c *Chip) QSqrt(a frontend.Variable) frontend.Variable {
	p, vb := c.cfg.PrecisionBits, c.cfg.ValueBits()

	s := c.api.Mul(a, pow2(p))
	out, err := c.api.Compiler().NewHint(sqrtHint, 1, s)
	if err != nil {
		panic(err)
	}
	y := out[0]
	c.rc.Check(y, vb)
	// y^2 <= s < (y+1)^2
	d := c.api.Sub(s, c.api.Mul(y, y))
	c.rc.Check(d, vb+1)
	c.rc.Check(c.api.Sub(c.api.Mul(y, 2), d), vb+1)
	return y
}

// AssertClose constrains |got - want| <= tolerance.
func (c *Chip) AssertClose(got, want, tolerance frontend.Variable) {
	diff := c.QAbs(c.api.Sub(got, want))
	c.api.AssertIsEqual(c.IsNegative(c.api.Sub(tolerance, diff)), 0)
}

// AssertVectorClose is AssertClose applied component-wise.
func (c *Chip) AssertVectorClose(got, want []frontend.Variable, tolerance frontend.Variable) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(got), len(want))
	}
	for i := range got {
		c.AssertClose(got[i], want[i], tolerance)
	}
	return nil
}
