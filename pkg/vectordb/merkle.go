package vectordb

import (
	"github.com/consensys/gnark/frontend"
)

// MerkleLeaves hashes each vector into one leaf, in order.
func (c *Chip) MerkleLeaves(vectors [][]frontend.Variable) ([]frontend.Variable, error) {
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}
	leaves := make([]frontend.Variable, len(vectors))
	for i, v := range vectors {
		leaf, err := c.hash(v...)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	return leaves, nil
}

// MerkleCommitment returns the Merkle root of vectors. Leaves are padded with
// zeros up to the next power of two; a single vector's root is its leaf.
func (c *Chip) MerkleCommitment(vectors [][]frontend.Variable) (frontend.Variable, error) {
	leaves, err := c.MerkleLeaves(vectors)
	if err != nil {
		return nil, err
	}
	level := padLeaves(leaves, frontend.Variable(0))
	for len(level) > 1 {
		next := make([]frontend.Variable, len(level)/2)
		for i := range next {
			node, err := c.hash(level[2*i], level[2*i+1])
			if err != nil {
				return nil, err
			}
			next[i] = node
		}
		level = next
	}
	return level[0], nil
}

func (c *Chip) hash(values ...frontend.Variable) (frontend.Variable, error) {
	h, err := c.hasher.circuit(c.fp.API())
	if err != nil {
		return nil, err
	}
	h.Write(values...)
	return h.Sum(), nil
}

// padLeaves extends leaves with zero up to the next power of two.
func padLeaves[T any](leaves []T, zero T) []T {
	size := 1
	for size < len(leaves) {
		size <<= 1
	}
	out := make([]T, size)
	copy(out, leaves)
	for i := len(leaves); i < size; i++ {
		out[i] = zero
	}
	return out
}
