package fixedpoint

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"min precision", Config{PrecisionBits: 8, LookupBits: 4}, false},
		{"max precision", Config{PrecisionBits: 62, LookupBits: 16}, false},
		{"precision too small", Config{PrecisionBits: 7, LookupBits: 4}, true},
		{"precision too large", Config{PrecisionBits: 63, LookupBits: 8}, true},
		{"zero lookup", Config{PrecisionBits: 32, LookupBits: 0}, true},
		{"lookup too large", Config{PrecisionBits: 62, LookupBits: 17}, true},
		{"lookup not below precision", Config{PrecisionBits: 8, LookupBits: 8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuantize_RoundTrip(t *testing.T) {
	for _, precision := range []int{16, 32, 48} {
		cfg := Config{PrecisionBits: precision, LookupBits: 8}
		for _, x := range []float64{0, 1, -1, 0.123, -2.5, 1.789, -0.456, 1000.25} {
			got := cfg.Dequantize(cfg.Quantize(x))
			assert.InDelta(t, x, got, cfg.Step(), "precision %d value %v", precision, x)
		}
	}
}

func TestQuantize_NegativeValuesUseUpperHalf(t *testing.T) {
	cfg := DefaultConfig()

	q := cfg.Quantize(-1)
	want := new(big.Int).Sub(cfg.Field(), cfg.Scale())
	assert.Equal(t, 0, q.Cmp(want))
	assert.Equal(t, -1.0, cfg.Dequantize(q))
	assert.Equal(t, 0, cfg.Signed(q).Cmp(new(big.Int).Neg(cfg.Scale())))
}

func TestQuantize_RoundsHalfAwayFromZero(t *testing.T) {
	cfg := Config{PrecisionBits: 8, LookupBits: 4}
	half := math.Ldexp(0.5, -8)

	assert.Equal(t, int64(1), cfg.Quantize(half).Int64())
	assert.Equal(t, int64(-1), cfg.Signed(cfg.Quantize(-half)).Int64())
	assert.Equal(t, int64(0), cfg.Quantize(half/2).Int64())
}

func TestQuantizeVector_RejectsInvalidValues(t *testing.T) {
	cfg := Config{PrecisionBits: 16, LookupBits: 8}

	_, err := cfg.QuantizeVector([]float64{1, math.NaN()})
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = cfg.QuantizeVector([]float64{math.Inf(-1)})
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = cfg.QuantizeVector([]float64{70000})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = cfg.QuantizeMatrix([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestQuantizeVector_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	v := []float64{0.123, 0.456, 1.789, -3}

	q, err := cfg.QuantizeVector(v)
	require.NoError(t, err)

	got := cfg.DequantizeVector(q)
	require.Len(t, got, len(v))
	for i := range v {
		assert.InDelta(t, v[i], got[i], cfg.Step())
	}

	m, err := cfg.QuantizeMatrix([][]float64{v, v})
	require.NoError(t, err)
	for _, row := range cfg.DequantizeMatrix(m) {
		assert.InDeltaSlice(t, v, row, cfg.Step())
	}
}

func TestOneHot_IndicatorIDs(t *testing.T) {
	cfg := DefaultConfig()
	ids := []int{0, 0, 1, 2, 1}

	rows, err := cfg.OneHot(ids, 3)
	require.NoError(t, err)

	got, err := cfg.IndicatorIDs(rows)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestIndicatorIDs_RejectsMalformedRows(t *testing.T) {
	cfg := DefaultConfig()
	one := cfg.Scale()

	tests := []struct {
		name string
		row  []*big.Int
	}{
		{"empty", []*big.Int{big.NewInt(0), big.NewInt(0)}},
		{"two ones", []*big.Int{one, one}},
		{"not one", []*big.Int{big.NewInt(5), big.NewInt(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cfg.IndicatorIDs([][]*big.Int{tt.row})
			assert.True(t, errors.Is(err, ErrNotIndicator))
		})
	}

	_, err := cfg.OneHot([]int{3}, 2)
	assert.ErrorIs(t, err, ErrNotIndicator)
}

func TestAssignMatrix(t *testing.T) {
	cfg := DefaultConfig()

	m, err := cfg.AssignMatrix([][]float64{{1.5, -2}, {0, 0.25}})
	require.NoError(t, err)
	require.Len(t, m, 2)
	for i, row := range [][]float64{{1.5, -2}, {0, 0.25}} {
		require.Len(t, m[i], len(row))
		for j, x := range row {
			assert.Zero(t, cfg.Quantize(x).Cmp(m[i][j].(*big.Int)), "entry %d,%d", i, j)
		}
	}

	_, err = cfg.AssignMatrix([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = cfg.AssignMatrix([][]float64{{1, math.NaN()}})
	assert.ErrorIs(t, err, ErrNotFinite)
}
