package circuits

import (
	"fmt"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Backend names a proving system.
type Backend string

const (
	// BackendPlonk is PlonK over BN254 with a KZG commitment.
	BackendPlonk Backend = "plonk"

	// BackendGroth16 is Groth16 over BN254.
	BackendGroth16 Backend = "groth16"
)

// ParseBackend converts a backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendPlonk, BackendGroth16:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// String implements fmt.Stringer.
func (b Backend) String() string { return string(b) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// CompiledCircuit contains the compiled constraint system and the keys
// needed to generate and verify proofs for one circuit shape.
type CompiledCircuit struct {
	// Backend is the proving system the keys belong to.
	Backend Backend

	// ConstraintSystem is the compiled circuit.
	ConstraintSystem constraint.ConstraintSystem

	plonkPK   plonk.ProvingKey
	plonkVK   plonk.VerifyingKey
	groth16PK groth16.ProvingKey
	groth16VK groth16.VerifyingKey
}

// NbConstraints returns the number of constraints of the compiled circuit.
func (c *CompiledCircuit) NbConstraints() int {
	return c.ConstraintSystem.GetNbConstraints()
}

// ConstraintSystem compiles circuit for backend without running the key
// setup.
func ConstraintSystem(circuit frontend.Circuit, backend Backend) (constraint.ConstraintSystem, error) {
	var builder frontend.NewBuilder
	switch backend {
	case BackendPlonk:
		builder = scs.NewBuilder
	case BackendGroth16:
		builder = r1cs.NewBuilder
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}

	cs, err := frontend.Compile(ecc.BN254.ScalarField(), builder, circuit)
	if err != nil {
		return nil, fmt.Errorf("%w: compile circuit: %w", ErrCompilationFailed, err)
	}
	return cs, nil
}

// Compile compiles circuit and generates its proving and verifying keys.
// This is computationally expensive; use a Cache to share the result.
//
// The PlonK SRS comes from unsafekzg and the Groth16 setup is a single party
// one. Both are suitable for development and testing only.
func Compile(circuit frontend.Circuit, backend Backend) (*CompiledCircuit, error) {
	cs, err := ConstraintSystem(circuit, backend)
	if err != nil {
		return nil, err
	}

	compiled := &CompiledCircuit{Backend: backend, ConstraintSystem: cs}
	switch backend {
	case BackendPlonk:
		srs, srsLagrange, err := unsafekzg.NewSRS(cs)
		if err != nil {
			return nil, fmt.Errorf("%w: generate SRS: %w", ErrCompilationFailed, err)
		}
		compiled.plonkPK, compiled.plonkVK, err = plonk.Setup(cs, srs, srsLagrange)
		if err != nil {
			return nil, fmt.Errorf("%w: setup keys: %w", ErrCompilationFailed, err)
		}
	case BackendGroth16:
		compiled.groth16PK, compiled.groth16VK, err = groth16.Setup(cs)
		if err != nil {
			return nil, fmt.Errorf("%w: setup keys: %w", ErrCompilationFailed, err)
		}
	}
	return compiled, nil
}

// Cache keeps the most recently used compiled circuits, keyed by backend and
// circuit shape. It is safe for concurrent use; concurrent requests for the
// same shape compile once.
type Cache struct {
	mu       sync.Mutex
	compiled *lru.Cache[string, *CompiledCircuit]
	pending  map[string]*sync.Mutex
}

// NewCache returns a cache holding at most size compiled circuits.
func NewCache(size int) (*Cache, error) {
	compiled, err := lru.New[string, *CompiledCircuit](size)
	if err != nil {
		return nil, fmt.Errorf("create circuit cache: %w", err)
	}
	return &Cache{
		compiled: compiled,
		pending:  make(map[string]*sync.Mutex),
	}, nil
}

// Get returns the compiled form of circuit, compiling it on first use.
func (c *Cache) Get(circuit Circuit, backend Backend) (*CompiledCircuit, error) {
	key := string(backend) + "|" + circuit.Shape()
	if compiled, ok := c.compiled.Get(key); ok {
		return compiled, nil
	}

	c.mu.Lock()
	keyMu, ok := c.pending[key]
	if !ok {
		keyMu = new(sync.Mutex)
		c.pending[key] = keyMu
	}
	c.mu.Unlock()

	keyMu.Lock()
	defer keyMu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	if compiled, ok := c.compiled.Get(key); ok {
		return compiled, nil
	}
	compiled, err := Compile(circuit, backend)
	if err != nil {
		return nil, err
	}
	c.compiled.Add(key, compiled)
	return compiled, nil
}

// Len returns the number of cached circuits.
func (c *Cache) Len() int {
	return c.compiled.Len()
}

// Purge drops every cached circuit.
func (c *Cache) Purge() {
	c.compiled.Purge()
}
