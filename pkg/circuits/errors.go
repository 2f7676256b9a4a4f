package circuits

// CircuitError represents a categorized error of the proving pipeline.
type CircuitError string

const (
	// ErrInvalidParams indicates that circuit parameters failed validation.
	ErrInvalidParams CircuitError = "invalid_circuit_params"

	// ErrInvalidInput indicates that the data given to build a witness does
	// not fit the circuit (empty, wrong shape or not representable).
	ErrInvalidInput CircuitError = "invalid_circuit_input"

	// ErrUnknownBackend indicates an unsupported proving backend name.
	ErrUnknownBackend CircuitError = "unknown_backend"

	// ErrCompilationFailed indicates that compilation or key setup failed.
	ErrCompilationFailed CircuitError = "circuit_compilation_failed"

	// ErrUnsatisfied indicates that an assignment does not satisfy the
	// circuit constraints.
	ErrUnsatisfied CircuitError = "constraints_not_satisfied"

	// ErrProofGenerationFailed indicates that proof generation failed.
	ErrProofGenerationFailed CircuitError = "proof_generation_failed"

	// ErrProofVerificationFailed indicates that a proof does not verify
	// against the public witness.
	ErrProofVerificationFailed CircuitError = "proof_verification_failed"

	// ErrCircuitNotReady indicates a prover or verifier without compiled keys.
	ErrCircuitNotReady CircuitError = "circuit_not_compiled"
)

// Error implements the error interface for CircuitError.
func (e CircuitError) Error() string {
	return string(e)
}
