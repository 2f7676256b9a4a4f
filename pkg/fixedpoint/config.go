// Package fixedpoint provides fixed-point arithmetic gadgets for gnark circuits.
//
// A real number x is quantized as round(x * 2^P), where P is the configured
// precision, and stored as an element of the BN254 scalar field. Negative
// numbers are represented by the upper half of the field, so -x is stored as
// r - round(x * 2^P).
//
// A quantized value is valid when its magnitude is below 2^(2P), i.e. the
// integer part of the real number is below 2^P. Every gadget that is not a
// pure field operation re-establishes this bound with range checks. Callers
// must pick P and bound their inputs so that sums stay inside the same range:
// the circuit cannot detect a wraparound produced by additions alone.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
)

const (
	// MinPrecisionBits is the smallest supported precision.
	MinPrecisionBits = 8

	// MaxPrecisionBits keeps products of two valid values (4P bits plus the
	// rescale offset) well below the 254-bit BN254 modulus.
	MaxPrecisionBits = 62

	// MaxLookupBits bounds the size of the transcendental lookup tables.
	MaxLookupBits = 16
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("fixedpoint: invalid config")

	// ErrLengthMismatch is returned when two vectors must have equal length and do not.
	ErrLengthMismatch = errors.New("fixedpoint: length mismatch")
)

// Config describes the fixed-point encoding. It is immutable once a Chip has
// been built from it and is shared by every higher-level chip.
type Config struct {
	// PrecisionBits is the number of fractional bits P.
	PrecisionBits int `toml:"precision_bits"`

	// LookupBits is the index width of the coarse tables used by QExp2,
	// QLog2 and QSin. Each table holds 2^LookupBits entries.
	LookupBits int `toml:"lookup_bits"`
}

// DefaultConfig returns a 32.32 encoding with 256-entry lookup tables.
func DefaultConfig() Config {
	return Config{
		PrecisionBits: 32,
		LookupBits:    8,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.PrecisionBits < MinPrecisionBits || c.PrecisionBits > MaxPrecisionBits {
		return fmt.Errorf("%w: precision_bits must be in [%d, %d], got %d",
			ErrInvalidConfig, MinPrecisionBits, MaxPrecisionBits, c.PrecisionBits)
	}
	if c.LookupBits < 1 || c.LookupBits > MaxLookupBits {
		return fmt.Errorf("%w: lookup_bits must be in [1, %d], got %d",
			ErrInvalidConfig, MaxLookupBits, c.LookupBits)
	}
	if c.LookupBits >= c.PrecisionBits {
		return fmt.Errorf("%w: lookup_bits (%d) must be smaller than precision_bits (%d)",
			ErrInvalidConfig, c.LookupBits, c.PrecisionBits)
	}
	return nil
}

// Field returns the scalar field quantized values are reduced into.
func (c Config) Field() *big.Int {
	return ecc.BN254.ScalarField()
}

// ValueBits is the magnitude bound of a valid quantized value: |q| < 2^ValueBits.
func (c Config) ValueBits() int {
	return 2 * c.PrecisionBits
}

// MaxValue returns the bound on the magnitude of representable reals.
func (c Config) MaxValue() float64 {
	return math.Ldexp(1, c.PrecisionBits)
}

// Step returns the quantization step 2^-P.
func (c Config) Step() float64 {
	return math.Ldexp(1, -c.PrecisionBits)
}

// Scale returns 2^P, the quantized representation of 1.
func (c Config) Scale() *big.Int {
	return pow2(c.PrecisionBits)
}

// Quantize encodes x as round(x * 2^P) reduced into the field. Ties round
// away from zero. The result is always in [0, r).
func (c Config) Quantize(x float64) *big.Int {
	f := new(big.Float).SetPrec(512).SetFloat64(x)
	f.SetMantExp(f, c.PrecisionBits)
	if x < 0 {
		f.Sub(f, big.NewFloat(0.5))
	} else {
		f.Add(f, big.NewFloat(0.5))
	}
	q, _ := f.Int(nil)
	if q.Sign() < 0 {
		q.Add(q, c.Field())
	}
	return q
}

// Dequantize decodes a field element back into a real number, reading values
// in the upper half of the field as negative.
func (c Config) Dequantize(v *big.Int) float64 {
	return dequantize(v, c.Field(), c.PrecisionBits)
}

// Signed returns the signed integer a field element stands for.
func (c Config) Signed(v *big.Int) *big.Int {
	return signed(v, c.Field())
}

func dequantize(v, field *big.Int, precision int) float64 {
	f := new(big.Float).SetPrec(512).SetInt(signed(v, field))
	f.SetMantExp(f, -precision)
	out, _ := f.Float64()
	return out
}

func signed(v, field *big.Int) *big.Int {
	x := new(big.Int).Mod(v, field)
	if x.Cmp(new(big.Int).Rsh(field, 1)) > 0 {
		x.Sub(x, field)
	}
	return x
}

func pow2(n int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(n))
}
