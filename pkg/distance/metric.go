package distance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMetric is returned for metric names that are not supported.
var ErrUnknownMetric = errors.New("distance: unknown metric")

// Metric names a distance function.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricManhattan Metric = "manhattan"
	MetricCosine    Metric = "cosine"
	MetricHamming   Metric = "hamming"
)

// Metrics lists the supported metrics.
func Metrics() []Metric {
	return []Metric{MetricEuclidean, MetricManhattan, MetricCosine, MetricHamming}
}

// ParseMetric parses a metric name, ignoring case.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Metrics() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

func (m Metric) String() string { return string(m) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Func returns the distance gadget for m. Cosine and Hamming map to their
// distance variants so that smaller is always closer.
func (c *Chip) Func(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return c.Euclidean, nil
	case MetricManhattan:
		return c.Manhattan, nil
	case MetricCosine:
		return c.CosineDistance, nil
	case MetricHamming:
		return c.HammingDistance, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, string(m))
	}
}
