package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark/frontend"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/mymonad/zkvdb/internal/config"
	"github.com/mymonad/zkvdb/pkg/circuits"
)

// run checks assignment against circuit in the selected mode.
func (a *app) run(cmd *cobra.Command, name string, circuit circuits.Circuit, assignment frontend.Circuit) error {
	out := cmd.OutOrStdout()
	backend := a.cfg.Circuit.Backend
	start := time.Now()

	switch a.mode {
	case modeMock:
		if err := circuits.Solve(circuit, assignment); err != nil {
			return err
		}
		a.logger.Info("witness solved", "circuit", name, "elapsed", time.Since(start))
		fmt.Fprintln(out, "status:      satisfied")

	case modeCount:
		cs, err := circuits.ConstraintSystem(circuit, backend)
		if err != nil {
			return err
		}
		a.logger.Info("circuit compiled", "circuit", name, "backend", backend, "elapsed", time.Since(start))
		fmt.Fprintf(out, "backend:     %s\n", backend)
		fmt.Fprintf(out, "constraints: %d\n", cs.GetNbConstraints())
		fmt.Fprintf(out, "public:      %d\n", cs.GetNbPublicVariables())
		fmt.Fprintf(out, "secret:      %d\n", cs.GetNbSecretVariables())

	case modeProve:
		compiled, err := a.cache.Get(circuit, backend)
		if err != nil {
			return err
		}
		a.logger.Info("circuit ready", "circuit", name, "backend", backend,
			"constraints", compiled.NbConstraints(), "elapsed", time.Since(start))

		start = time.Now()
		result, err := circuits.NewProver(compiled).Prove(assignment)
		if err != nil {
			return err
		}
		a.logger.Info("proof generated", "circuit", name, "bytes", len(result.Proof), "elapsed", time.Since(start))

		start = time.Now()
		if err := circuits.NewVerifier(compiled).VerifyResult(result); err != nil {
			return err
		}
		a.logger.Info("proof verified", "circuit", name, "elapsed", time.Since(start))

		path, err := a.writeProof(name, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "backend:     %s\n", backend)
		fmt.Fprintf(out, "constraints: %d\n", compiled.NbConstraints())
		fmt.Fprintf(out, "proof:       %s (%d bytes)\n", path, len(result.Proof))
		fmt.Fprintln(out, "status:      verified")
	}
	return nil
}

// writeProof stores the proof and its public witness next to each other in
// the proof directory.
func (a *app) writeProof(name string, result *circuits.ProofResult) (string, error) {
	dir := config.ExpandPath(a.cfg.Data.ProofDir)
	if dir == "" {
		dir = config.DefaultPaths().ProofDir
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create proof directory: %w", err)
	}

	base := filepath.Join(dir, fmt.Sprintf("%s-%s-%d", name, result.Backend, time.Now().UnixNano()))
	if err := os.WriteFile(base+".proof", result.Proof, 0600); err != nil {
		return "", fmt.Errorf("write proof: %w", err)
	}
	if err := os.WriteFile(base+".public", result.PublicWitness, 0600); err != nil {
		return "", fmt.Errorf("write public witness: %w", err)
	}
	return base + ".proof", nil
}

// rootBytes returns the 32-byte big-endian encoding of a field element.
func rootBytes(root *big.Int) []byte {
	return root.FillBytes(make([]byte, 32))
}

// printRoot prints a Merkle root in hex and base58.
func printRoot(cmd *cobra.Command, root *big.Int) {
	b := rootBytes(root)
	fmt.Fprintf(cmd.OutOrStdout(), "root:        0x%x\n", b)
	fmt.Fprintf(cmd.OutOrStdout(), "root58:      %s\n", base58.Encode(b))
}

func printVector(cmd *cobra.Command, label string, v []float64) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-12s %v\n", label+":", v)
}
