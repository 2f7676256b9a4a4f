// Package dataset loads, generates and stores the vector sets fed to the
// circuits.
//
// Supported formats are chosen by file extension:
//   - .json: {"vectors": [[...], ...], "query": [...]}
//   - .yaml, .yml: the same document in YAML
//   - .fvecs: the little-endian format used by the SIFT/GIST benchmarks
//     (uint32 dimension followed by that many float32 values, per vector)
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/viterin/vek"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmpty is returned when a dataset has no vectors.
	ErrEmpty = errors.New("dataset: no vectors")

	// ErrDimensionMismatch is returned when vectors have different lengths.
	ErrDimensionMismatch = errors.New("dataset: dimension mismatch")

	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("dataset: unsupported format")

	// ErrZeroVector is returned when normalizing a zero vector.
	ErrZeroVector = errors.New("dataset: cannot normalize zero vector")
)

// Dataset is a set of equally sized vectors and an optional query.
type Dataset struct {
	Vectors [][]float64 `json:"vectors" yaml:"vectors"`
	Query   []float64   `json:"query,omitempty" yaml:"query,omitempty"`
}

// Dimension returns the number of components per vector, or 0 for an empty
// dataset.
func (d *Dataset) Dimension() int {
	if len(d.Vectors) == 0 {
		return 0
	}
	return len(d.Vectors[0])
}

// Validate checks that the dataset is non-empty, rectangular and finite, and
// that the query (if any) matches the vector dimension.
func (d *Dataset) Validate() error {
	if len(d.Vectors) == 0 {
		return ErrEmpty
	}
	dim := d.Dimension()
	if dim == 0 {
		return fmt.Errorf("%w: vectors have no components", ErrDimensionMismatch)
	}
	for i, v := range d.Vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d components, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		if err := checkFinite(v); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}
	if d.Query != nil {
		if len(d.Query) != dim {
			return fmt.Errorf("%w: query has %d components, want %d", ErrDimensionMismatch, len(d.Query), dim)
		}
		if err := checkFinite(d.Query); err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}
	return nil
}

func checkFinite(v []float64) error {
	for j, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("component %d is not finite: %v", j, x)
		}
	}
	return nil
}

// Normalize scales every vector and the query to unit length in place.
func (d *Dataset) Normalize() error {
	for i, v := range d.Vectors {
		if err := normalize(v); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}
	if d.Query != nil {
		if err := normalize(d.Query); err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}
	return nil
}

func normalize(v []float64) error {
	norm := vek.Norm(v)
	if norm == 0 {
		return ErrZeroVector
	}
	vek.DivNumber_Inplace(v, norm)
	return nil
}

// Generate returns n random vectors of dimension dim with components drawn
// uniformly from [0, upper), plus a random query. The same seed always yields
// the same dataset.
func Generate(n, dim int, upper float64, seed uint64) *Dataset {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vector := func() []float64 {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.Float64() * upper
		}
		return v
	}

	d := &Dataset{Vectors: make([][]float64, n)}
	for i := range d.Vectors {
		d.Vectors[i] = vector()
	}
	d.Query = vector()
	return d
}

// Load reads a dataset from path, picking the decoder from the extension.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var d Dataset
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse dataset: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to parse dataset: %w", err)
		}
	case ".fvecs":
		vectors, err := DecodeFvecs(data)
		if err != nil {
			return nil, err
		}
		d.Vectors = vectors
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save atomically writes d to path, picking the encoder from the extension.
// The query is not stored in .fvecs files.
func Save(path string, d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}

	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(d, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(d)
	case ".fvecs":
		data, err = EncodeFvecs(d.Vectors)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	return writeFileAtomic(path, data, 0644)
}
