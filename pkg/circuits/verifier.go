package circuits

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

// Verifier validates proofs for one compiled circuit. It only needs the
// verifying key; the private inputs are never seen.
type Verifier struct {
	compiled *CompiledCircuit
}

// NewVerifier creates a new Verifier with the given compiled circuit.
func NewVerifier(compiled *CompiledCircuit) *Verifier {
	return &Verifier{compiled: compiled}
}

// Verify checks a serialized proof against a serialized public witness.
func (v *Verifier) Verify(proofBytes, publicWitness []byte) error {
	if v.compiled == nil {
		return ErrCircuitNotReady
	}

	public, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProofVerificationFailed, err)
	}
	if err := public.UnmarshalBinary(publicWitness); err != nil {
		return fmt.Errorf("%w: deserialize public witness: %w", ErrProofVerificationFailed, err)
	}

	switch v.compiled.Backend {
	case BackendPlonk:
		proof := plonk.NewProof(ecc.BN254)
		if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
			return fmt.Errorf("%w: deserialize proof: %w", ErrProofVerificationFailed, err)
		}
		err = plonk.Verify(proof, v.compiled.plonkVK, public)
	case BackendGroth16:
		proof := groth16.NewProof(ecc.BN254)
		if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
			return fmt.Errorf("%w: deserialize proof: %w", ErrProofVerificationFailed, err)
		}
		err = groth16.Verify(proof, v.compiled.groth16VK, public)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, v.compiled.Backend)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProofVerificationFailed, err)
	}
	return nil
}

// VerifyResult checks a ProofResult produced by a Prover.
func (v *Verifier) VerifyResult(result *ProofResult) error {
	if v.compiled == nil {
		return ErrCircuitNotReady
	}
	if result.Backend != v.compiled.Backend {
		return fmt.Errorf("%w: proof from %s, keys for %s", ErrProofVerificationFailed, result.Backend, v.compiled.Backend)
	}
	return v.Verify(result.Proof, result.PublicWitness)
}

// PublicWitness encodes the public inputs of assignment. A verifier uses it
// to check a proof against values it computed or received independently.
func PublicWitness(assignment frontend.Circuit) ([]byte, error) {
	public, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("build public witness: %w", err)
	}
	return public.MarshalBinary()
}
