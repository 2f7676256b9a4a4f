package dataset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrMalformedFvecs is returned when an fvecs stream is truncated or has
// vectors of varying dimension.
var ErrMalformedFvecs = errors.New("dataset: malformed fvecs data")

// ReadFvecs decodes every vector of an fvecs stream.
func ReadFvecs(r io.Reader) ([][]float64, error) {
	var vectors [][]float64
	for {
		var dim uint32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: vector %d header: %v", ErrMalformedFvecs, len(vectors), err)
		}
		if dim == 0 {
			return nil, fmt.Errorf("%w: vector %d has zero dimension", ErrMalformedFvecs, len(vectors))
		}
		if len(vectors) > 0 && int(dim) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrMalformedFvecs, len(vectors), dim, len(vectors[0]))
		}

		raw := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("%w: vector %d body: %v", ErrMalformedFvecs, len(vectors), err)
		}
		v := make([]float64, dim)
		for j, x := range raw {
			v[j] = float64(x)
		}
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	return vectors, nil
}

// DecodeFvecs is ReadFvecs over an in-memory buffer.
func DecodeFvecs(data []byte) ([][]float64, error) {
	return ReadFvecs(bytes.NewReader(data))
}

// WriteFvecs encodes vectors as fvecs. Components are narrowed to float32.
func WriteFvecs(w io.Writer, vectors [][]float64) error {
	for i, v := range vectors {
		if len(v) > math.MaxUint32 {
			return fmt.Errorf("vector %d is too long", i)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(v))); err != nil {
			return err
		}
		raw := make([]float32, len(v))
		for j, x := range v {
			raw[j] = float32(x)
		}
		if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
			return err
		}
	}
	return nil
}

// EncodeFvecs is WriteFvecs into a new buffer.
func EncodeFvecs(vectors [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteFvecs(&buf, vectors); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
