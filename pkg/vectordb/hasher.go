package vectordb

import (
	"errors"
	"fmt"
	stdhash "hash"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	gmimc "github.com/consensys/gnark/std/hash/mimc"
	gposeidon2 "github.com/consensys/gnark/std/permutation/poseidon2"
)

// ErrUnknownHasher is returned for hash function names that are not supported.
var ErrUnknownHasher = errors.New("vectordb: unknown hasher")

// Hasher names the field-native hash used for Merkle commitments. The same
// function is available in-circuit and natively so roots can be computed on
// either side.
type Hasher string

const (
	// HasherPoseidon2 is Poseidon2 in Merkle-Damgard mode.
	HasherPoseidon2 Hasher = "poseidon2"

	// HasherMiMC is MiMC in Miyaguchi-Preneel mode.
	HasherMiMC Hasher = "mimc"
)

// Poseidon2 parameters for BN254 (width, full rounds, partial rounds). They
// match the gnark-crypto defaults used by the native hasher.
const (
	poseidon2Width         = 2
	poseidon2FullRounds    = 6
	poseidon2PartialRounds = 50
)

// ParseHasher parses a hasher name, ignoring case.
func ParseHasher(s string) (Hasher, error) {
	switch h := Hasher(strings.ToLower(strings.TrimSpace(s))); h {
	case HasherPoseidon2, HasherMiMC:
		return h, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHasher, s)
	}
}

func (h Hasher) String() string { return string(h) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hasher) UnmarshalText(text []byte) error {
	parsed, err := ParseHasher(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// circuit returns a fresh in-circuit hasher.
func (h Hasher) circuit(api frontend.API) (hash.FieldHasher, error) {
	switch h {
	case HasherPoseidon2:
		p, err := gposeidon2.NewPoseidon2FromParameters(api, poseidon2Width, poseidon2FullRounds, poseidon2PartialRounds)
		if err != nil {
			return nil, fmt.Errorf("poseidon2 params: %w", err)
		}
		return hash.NewMerkleDamgardHasher(api, p, 0), nil
	case HasherMiMC:
		m, err := gmimc.NewMiMC(api)
		if err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, string(h))
	}
}

// native returns a fresh BN254 hasher matching circuit.
func (h Hasher) native() (stdhash.Hash, error) {
	switch h {
	case HasherPoseidon2:
		return poseidon2.NewMerkleDamgardHasher(), nil
	case HasherMiMC:
		return mimc.NewMiMC(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, string(h))
	}
}
