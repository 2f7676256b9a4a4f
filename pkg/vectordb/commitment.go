package vectordb

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/mymonad/zkvdb/pkg/fixedpoint"
)

// ComputeMerkleRoot computes the Merkle root of vectors outside the circuit.
// It quantizes with cfg and hashes exactly like MerkleCommitment, so the
// result can be used as the public root of a circuit.
func ComputeMerkleRoot(cfg fixedpoint.Config, hasher Hasher, vectors [][]float64) (*big.Int, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyDatabase
	}
	q, err := cfg.QuantizeMatrix(vectors)
	if err != nil {
		return nil, err
	}
	return MerkleRoot(hasher, q)
}

// MerkleRoot computes the Merkle root of already quantized vectors.
func MerkleRoot(hasher Hasher, vectors [][]*big.Int) (*big.Int, error) {
	leaves, err := MerkleLeaves(hasher, vectors)
	if err != nil {
		return nil, err
	}
	level := padLeaves(leaves, new(big.Int))
	for len(level) > 1 {
		next := make([]*big.Int, len(level)/2)
		for i := range next {
			node, err := HashElements(hasher, level[2*i], level[2*i+1])
			if err != nil {
				return nil, err
			}
			next[i] = node
		}
		level = next
	}
	return level[0], nil
}

// MerkleLeaves computes the leaf hash of each quantized vector.
func MerkleLeaves(hasher Hasher, vectors [][]*big.Int) ([]*big.Int, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyDatabase
	}
	leaves := make([]*big.Int, len(vectors))
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has %d components, want %d",
				ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
		leaf, err := HashElements(hasher, v...)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	return leaves, nil
}

// HashElements hashes field elements with the native counterpart of the
// in-circuit hasher. Inputs are reduced modulo the BN254 scalar field.
func HashElements(hasher Hasher, values ...*big.Int) (*big.Int, error) {
	h, err := hasher.native()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		var elem fr.Element
		elem.SetBigInt(v)
		b := elem.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, err
		}
	}

	var result fr.Element
	result.SetBytes(h.Sum(nil))
	return result.BigInt(new(big.Int)), nil
}
