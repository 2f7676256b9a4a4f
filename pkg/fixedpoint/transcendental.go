package fixedpoint

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/lookup/logderivlookup"
)

// Transcendental gadgets use a coarse lookup on the top LookupBits of the
// fractional part followed by a short Taylor correction on the remainder.

// QExp2 returns 2^a for a in [-P, P-1).
func (c *Chip) QExp2(a frontend.Variable) frontend.Variable {
	p, l := c.cfg.PrecisionBits, c.cfg.LookupBits

	// a + P is non-negative; its integer part indexes the power table
	t := c.api.Add(a, new(big.Int).Lsh(big.NewInt(int64(p)), uint(p)))
	n, frac := c.split(t, p, c.indexBits())
	hi, lo := c.split(frac, p-l, l)

	coarse := c.exp2Table().Lookup(hi)[0]
	// 2^lo = e^(lo ln2), lo < 2^-L
	x := c.QMul(lo, c.Constant(math.Ln2))
	fine := c.horner(x, 1, 1, 1.0/2, 1.0/6, 1.0/24)
	return c.QMul(c.QMul(coarse, fine), c.pow2Table().Lookup(n)[0])
}

// QLog2 returns log2(a) for a > 0. The prover fails on non-positive input.
func (c *Chip) QLog2(a frontend.Variable) frontend.Variable {
	p, l, vb := c.cfg.PrecisionBits, c.cfg.LookupBits, c.cfg.ValueBits()

	out, err := c.api.Compiler().NewHint(log2Hint, 3, a, p)
	if err != nil {
		panic(err)
	}
	e, m, rem := out[0], out[1], out[2]
	c.rc.Check(e, c.indexBits())
	pow := c.pow2Table().Lookup(e)[0]

	// a * 2^P = m * 2^e + rem with 0 <= rem < 2^e and m in [2^P, 2^(P+1))
	c.rc.Check(rem, vb)
	c.rc.Check(c.api.Sub(pow, c.api.Add(rem, 1)), vb)
	c.api.AssertIsEqual(c.api.Mul(a, pow2(p)), c.api.Add(c.api.Mul(m, pow), rem))
	hi, lo := c.split(c.api.Sub(m, pow2(p)), p-l, l)

	base := c.log2Table().Lookup(hi)[0]
	// log2(1 + lo/(1 + hi)) = ln(1 + r) / ln2
	r := c.QMul(lo, c.recipTable().Lookup(hi)[0])
	series := c.QMul(r, c.horner(r, 1, -1.0/2, 1.0/3, -1.0/4))
	corr := c.QMul(series, c.Constant(1/math.Ln2))

	exponent := c.FromInteger(c.api.Sub(e, p))
	return c.Sum(exponent, base, corr)
}

// QSin returns sin(a) for any valid a.
func (c *Chip) QSin(a frontend.Variable) frontend.Variable {
	p, l, vb := c.cfg.PrecisionBits, c.cfg.LookupBits, c.cfg.ValueBits()

	turns := c.QMul(a, c.Constant(1/(2*math.Pi)))
	// drop whole turns; 2^vb is a multiple of 2^P so the fraction is kept
	_, frac := c.split(c.api.Add(turns, pow2(vb)), p, vb-p+1)
	hi, lo := c.split(frac, p-l, l)

	sinT := c.sinTable().Lookup(hi)[0]
	cosT := c.cosTable().Lookup(hi)[0]
	delta := c.QMul(lo, c.Constant(2*math.Pi))
	d2 := c.QMul(delta, delta)
	cosD := c.horner(d2, 1, -1.0/2, 1.0/24)
	sinD := c.QMul(delta, c.horner(d2, 1, -1.0/6, 1.0/120))

	// sin(x + d) = sin(x)cos(d) + cos(x)sin(d)
	return c.api.Add(c.QMul(sinT, cosD), c.QMul(cosT, sinD))
}

// QCos returns cos(a) = sin(a + pi/2).
func (c *Chip) QCos(a frontend.Variable) frontend.Variable {
	return c.QSin(c.api.Add(a, c.Constant(math.Pi/2)))
}

// horner evaluates coeffs[0] + coeffs[1] x + ... at x.
func (c *Chip) horner(x frontend.Variable, coeffs ...float64) frontend.Variable {
	acc := c.Constant(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		acc = c.api.Add(c.QMul(acc, x), c.Constant(coeffs[i]))
	}
	return acc
}

// indexBits is the width of an index into the power table of 2P entries.
func (c *Chip) indexBits() int {
	return bits.Len(uint(c.cfg.ValueBits() - 1))
}

// pow2Table maps i in [0, 2P) to 2^i, the quantized value of 2^(i-P).
func (c *Chip) pow2Table() logderivlookup.Table {
	return c.table(&c.pow2T, c.cfg.ValueBits(), func(i int) *big.Int {
		return pow2(i)
	})
}

func (c *Chip) exp2Table() logderivlookup.Table {
	return c.table(&c.exp2T, 1<<c.cfg.LookupBits, func(i int) *big.Int {
		return c.cfg.Quantize(math.Exp2(c.coarse(i)))
	})
}

func (c *Chip) log2Table() logderivlookup.Table {
	return c.table(&c.log2T, 1<<c.cfg.LookupBits, func(i int) *big.Int {
		return c.cfg.Quantize(math.Log2(1 + c.coarse(i)))
	})
}

func (c *Chip) recipTable() logderivlookup.Table {
	return c.table(&c.recipT, 1<<c.cfg.LookupBits, func(i int) *big.Int {
		return c.cfg.Quantize(1 / (1 + c.coarse(i)))
	})
}

func (c *Chip) sinTable() logderivlookup.Table {
	return c.table(&c.sinT, 1<<c.cfg.LookupBits, func(i int) *big.Int {
		return c.cfg.Quantize(math.Sin(2 * math.Pi * c.coarse(i)))
	})
}

func (c *Chip) cosTable() logderivlookup.Table {
	return c.table(&c.cosT, 1<<c.cfg.LookupBits, func(i int) *big.Int {
		return c.cfg.Quantize(math.Cos(2 * math.Pi * c.coarse(i)))
	})
}

// coarse returns i / 2^L.
func (c *Chip) coarse(i int) float64 {
	return math.Ldexp(float64(i), -c.cfg.LookupBits)
}

func (c *Chip) table(slot *logderivlookup.Table, size int, entry func(int) *big.Int) logderivlookup.Table {
	if *slot == nil {
		t := logderivlookup.New(c.api)
		for i := 0; i < size; i++ {
			t.Insert(entry(i))
		}
		*slot = t
	}
	return *slot
}
