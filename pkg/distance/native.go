package distance

import (
	"fmt"
	"math/big"

	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

// NativeFunc computes a distance between two signed quantized vectors outside
// the circuit.
type NativeFunc func(a, b []*big.Int) (*big.Int, error)

// Native returns the counterpart of Chip.Func(m) evaluated with the native
// arithmetic of cfg. For any inputs it returns the value the gadget computes.
func Native(cfg fixedpoint.Config, m Metric) (NativeFunc, error) {
	n := native{cfg: cfg}
	switch m {
	case MetricEuclidean:
		return n.euclidean, nil
	case MetricManhattan:
		return n.manhattan, nil
	case MetricCosine:
		return n.cosineDistance, nil
	case MetricHamming:
		return n.hammingDistance, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, string(m))
	}
}

type native struct {
	cfg fixedpoint.Config
}

func checkNativeLengths(a, b []*big.Int) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return ErrEmptyVector
	}
	return nil
}

func (n native) euclidean(a, b []*big.Int) (*big.Int, error) {
	if err := checkNativeLengths(a, b); err != nil {
		return nil, err
	}
	d := make([]*big.Int, len(a))
	for i := range a {
		d[i] = new(big.Int).Sub(a[i], b[i])
	}
	sq, err := n.cfg.InnerProduct(d, d)
	if err != nil {
		return nil, err
	}
	return n.cfg.Sqrt(sq)
}

func (n native) manhattan(a, b []*big.Int) (*big.Int, error) {
	if err := checkNativeLengths(a, b); err != nil {
		return nil, err
	}
	sum := new(big.Int)
	for i := range a {
		d := new(big.Int).Sub(a[i], b[i])
		sum.Add(sum, d.Abs(d))
	}
	return sum, nil
}

func (n native) cosineSimilarity(a, b []*big.Int) (*big.Int, error) {
	if err := checkNativeLengths(a, b); err != nil {
		return nil, err
	}
	ab, err := n.cfg.InnerProduct(a, b)
	if err != nil {
		return nil, err
	}
	aa, err := n.cfg.InnerProduct(a, a)
	if err != nil {
		return nil, err
	}
	bb, err := n.cfg.InnerProduct(b, b)
	if err != nil {
		return nil, err
	}
	na, err := n.cfg.Sqrt(aa)
	if err != nil {
		return nil, err
	}
	nb, err := n.cfg.Sqrt(bb)
	if err != nil {
		return nil, err
	}
	return n.cfg.Div(ab, n.cfg.Mul(na, nb))
}

func (n native) cosineDistance(a, b []*big.Int) (*big.Int, error) {
	sim, err := n.cosineSimilarity(a, b)
	if err != nil {
		return nil, err
	}
	return sim.Sub(n.cfg.Scale(), sim), nil
}

func (n native) hammingDistance(a, b []*big.Int) (*big.Int, error) {
	if err := checkNativeLengths(a, b); err != nil {
		return nil, err
	}
	count := int64(0)
	for i := range a {
		if a[i].Cmp(b[i]) == 0 {
			count++
		}
	}
	one := n.cfg.Scale()
	matches := new(big.Int).Mul(big.NewInt(count), one)
	size := new(big.Int).Mul(big.NewInt(int64(len(a))), one)
	sim, err := n.cfg.Div(matches, size)
	if err != nil {
		return nil, err
	}
	return sim.Sub(one, sim), nil
}
