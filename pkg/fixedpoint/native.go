package fixedpoint

import (
	"fmt"
	"math/big"
)

// The methods below evaluate chip operations outside the circuit. They work
// on signed quantized integers (see Signed) and round exactly like the
// gadgets, so witness values computed with them are the values Define
// derives. Range checks are not mirrored: a value out of range still fails
// when the witness is solved.

// Reduce maps a signed quantized integer into the field.
func (c Config) Reduce(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, c.Field())
}

// SignedVector is Signed applied to each component of v.
func (c Config) SignedVector(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = c.Signed(x)
	}
	return out
}

// ReduceVector is Reduce applied to each component of v.
func (c Config) ReduceVector(v []*big.Int) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = c.Reduce(x)
	}
	return out
}

// rescale divides x by 2^P rounding half up, like the rescale step of QMul.
func (c Config) rescale(x *big.Int) *big.Int {
	p := uint(c.PrecisionBits)
	t := new(big.Int).Add(x, pow2(c.PrecisionBits-1))
	// Rsh floors negative values, matching the shifted split in the circuit.
	return t.Rsh(t, p)
}

// Mul is the native QMul.
func (c Config) Mul(a, b *big.Int) *big.Int {
	return c.rescale(new(big.Int).Mul(a, b))
}

// InnerProduct is the native Chip.InnerProduct: the products are summed
// before a single rescale.
func (c Config) InnerProduct(a, b []*big.Int) (*big.Int, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	sum := new(big.Int)
	for i := range a {
		sum.Add(sum, new(big.Int).Mul(a[i], b[i]))
	}
	return c.rescale(sum), nil
}

// Div is the native QDiv: floor(a * 2^P / b).
func (c Config) Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	num := new(big.Int).Lsh(a, uint(c.PrecisionBits))
	den := new(big.Int).Set(b)
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}
	// Div is Euclidean division, which floors for a positive divisor.
	return num.Div(num, den), nil
}

// Sqrt is the native QSqrt: floor(sqrt(a * 2^P)).
func (c Config) Sqrt(a *big.Int) (*big.Int, error) {
	if a.Sign() < 0 {
		return nil, ErrNegativeSqrt
	}
	s := new(big.Int).Lsh(a, uint(c.PrecisionBits))
	return s.Sqrt(s), nil
}
