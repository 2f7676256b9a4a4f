package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark/constraint/solver"
)

var (
	// ErrDivisionByZero is returned by the solver when QDiv divides by zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrNegativeSqrt is returned by the solver when QSqrt gets a negative input.
	ErrNegativeSqrt = errors.New("fixedpoint: square root of negative value")

	// ErrNonPositiveLog is returned by the solver when QLog2 gets an input <= 0.
	ErrNonPositiveLog = errors.New("fixedpoint: logarithm of non-positive value")

	errHintArity = errors.New("fixedpoint: unexpected hint arity")
)

func init() {
	solver.RegisterHint(GetHints()...)
}

// GetHints returns the hints used by the fixed-point chip. They are registered
// on package load; the list is exported for provers running in other processes.
func GetHints() []solver.Hint {
	return []solver.Hint{
		splitHint,
		divHint,
		sqrtHint,
		log2Hint,
	}
}

// splitHint computes (x >> s, x mod 2^s) for inputs (x, s).
func splitHint(_ *big.Int, inputs []*big.Int, outputs []*big.Int) error {
	if len(inputs) != 2 || len(outputs) != 2 {
		return errHintArity
	}
	shift := uint(inputs[1].Uint64())
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), shift), big.NewInt(1))
	outputs[0].Rsh(inputs[0], shift)
	outputs[1].And(inputs[0], mask)
	return nil
}

// divHint computes floor division with remainder of two non-negative integers.
func divHint(_ *big.Int, inputs []*big.Int, outputs []*big.Int) error {
	if len(inputs) != 2 || len(outputs) != 2 {
		return errHintArity
	}
	if inputs[1].Sign() == 0 {
		return ErrDivisionByZero
	}
	outputs[0].QuoRem(inputs[0], inputs[1], outputs[1])
	return nil
}

// sqrtHint computes floor(sqrt(x)).
func sqrtHint(field *big.Int, inputs []*big.Int, outputs []*big.Int) error {
	if len(inputs) != 1 || len(outputs) != 1 {
		return errHintArity
	}
	if inputs[0].Cmp(new(big.Int).Rsh(field, 1)) > 0 {
		return ErrNegativeSqrt
	}
	outputs[0].Sqrt(inputs[0])
	return nil
}

// log2Hint normalizes a positive quantized value a with precision p. It
// returns e = bitlen(a) - 1, the mantissa m = floor(a * 2^p / 2^e) in
// [2^p, 2^(p+1)) and the remainder a * 2^p - m * 2^e.
func log2Hint(field *big.Int, inputs []*big.Int, outputs []*big.Int) error {
	if len(inputs) != 2 || len(outputs) != 3 {
		return errHintArity
	}
	a := inputs[0]
	if a.Sign() == 0 || a.Cmp(new(big.Int).Rsh(field, 1)) > 0 {
		return ErrNonPositiveLog
	}
	p := uint(inputs[1].Uint64())
	e := uint(a.BitLen() - 1)
	num := new(big.Int).Lsh(a, p)
	outputs[0].SetUint64(uint64(e))
	outputs[1].Rsh(num, e)
	outputs[2].Sub(num, new(big.Int).Lsh(outputs[1], e))
	return nil
}
