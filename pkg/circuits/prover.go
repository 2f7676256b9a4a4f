package circuits

import (
	"bytes"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
)

// Prover generates proofs for one compiled circuit.
type Prover struct {
	compiled *CompiledCircuit
}

// ProofResult contains a serialized proof and the public witness it must be
// verified against.
type ProofResult struct {
	// Backend is the proving system that produced Proof.
	Backend Backend

	// Proof is the serialized proof.
	Proof []byte

	// PublicWitness is the binary encoded public part of the assignment.
	PublicWitness []byte
}

// NewProver creates a new Prover with the given compiled circuit.
func NewProver(compiled *CompiledCircuit) *Prover {
	return &Prover{compiled: compiled}
}

// Prove creates a proof that assignment satisfies the compiled circuit.
// The assignment must have the shape the circuit was compiled with.
func (p *Prover) Prove(assignment frontend.Circuit) (*ProofResult, error) {
	if p.compiled == nil || p.compiled.ConstraintSystem == nil {
		return nil, ErrCircuitNotReady
	}

	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: build witness: %w", ErrProofGenerationFailed, err)
	}

	var proof io.WriterTo
	switch p.compiled.Backend {
	case BackendPlonk:
		proof, err = plonk.Prove(p.compiled.ConstraintSystem, p.compiled.plonkPK, full)
	case BackendGroth16:
		proof, err = groth16.Prove(p.compiled.ConstraintSystem, p.compiled.groth16PK, full)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, p.compiled.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProofGenerationFailed, err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("%w: serialize proof: %w", ErrProofGenerationFailed, err)
	}

	public, err := full.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: public witness: %w", ErrProofGenerationFailed, err)
	}
	publicBytes, err := public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize public witness: %w", ErrProofGenerationFailed, err)
	}

	return &ProofResult{
		Backend:       p.compiled.Backend,
		Proof:         proofBuf.Bytes(),
		PublicWitness: publicBytes,
	}, nil
}

// Solve checks assignment against circuit with gnark's test engine, without
// compiling or proving. It is the fast path for checking a witness.
func Solve(circuit, assignment frontend.Circuit) error {
	if err := test.IsSolved(circuit, assignment, ecc.BN254.ScalarField()); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsatisfied, err)
	}
	return nil
}
