package main

import (
	"context"
	"fmt"
	"math/big"
	"os/signal"
	"syscall"

	"github.com/consensys/gnark/frontend"
	"github.com/spf13/cobra"

	"github.com/mymonad/zkvdb/internal/watch"
	"github.com/mymonad/zkvdb/pkg/circuits"
	"github.com/mymonad/zkvdb/pkg/dataset"
	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

func (a *app) distanceCmd() *cobra.Command {
	var va, vb []float64

	cmd := &cobra.Command{
		Use:   "distance",
		Short: "Prove the distance between two private vectors",
		Example: `  zkvdb distance --a 0.1,0.2,0.3 --b 0.3,0.2,0.1 --metric cosine
  zkvdb distance --a 1,2 --b 3,4 --mode prove --backend groth16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := a.cfg.Params()
			assignment, err := circuits.NewDistanceAssignment(params, va, vb)
			if err != nil {
				return err
			}
			d := params.FixedPoint.Dequantize(assignment.Distance.(*big.Int))
			fmt.Fprintf(cmd.OutOrStdout(), "metric:      %s\n", params.Metric)
			fmt.Fprintf(cmd.OutOrStdout(), "distance:    %.9g\n", d)
			return a.run(cmd, "distance", circuits.NewDistanceCircuit(params, len(va)), assignment)
		},
	}
	cmd.Flags().Float64SliceVar(&va, "a", nil, "First vector (comma separated)")
	cmd.Flags().Float64SliceVar(&vb, "b", nil, "Second vector (comma separated)")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("b")
	return cmd
}

func (a *app) nearestCmd() *cobra.Command {
	var query []float64

	cmd := &cobra.Command{
		Use:   "nearest [dataset]",
		Short: "Prove the nearest vector of a committed dataset to a query",
		Example: `  zkvdb nearest vectors.json
  zkvdb nearest sift.fvecs --query 0.5,0.1,0.9 --mode count`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDataset(args)
			if err != nil {
				return err
			}
			if len(query) == 0 {
				query = d.Query
			}
			if len(query) == 0 {
				return fmt.Errorf("no query given (pass --query or add one to the dataset)")
			}

			params := a.cfg.Params()
			assignment, err := circuits.NewNearestVectorAssignment(params, query, d.Vectors)
			if err != nil {
				return err
			}

			matches, err := nearestMatches(params, query, d.Vectors)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "metric:      %s\n", params.Metric)
			fmt.Fprintf(cmd.OutOrStdout(), "matches:     %v\n", matches)
			printVector(cmd, "nearest", params.FixedPoint.DequantizeVector(bigInts(assignment.Nearest)))
			printRoot(cmd, assignment.Root.(*big.Int))

			n, dim := len(d.Vectors), d.Dimension()
			return a.run(cmd, "nearest", circuits.NewNearestVectorCircuit(params, n, dim), assignment)
		},
	}
	cmd.Flags().Float64SliceVar(&query, "query", nil, "Query vector (comma separated), defaults to the dataset query")
	return cmd
}

func (a *app) kmeansCmd() *cobra.Command {
	var clusters, iterations int

	cmd := &cobra.Command{
		Use:   "kmeans [dataset]",
		Short: "Prove a k-means clustering of a committed dataset",
		Example: `  zkvdb kmeans vectors.yaml --clusters 3 --iterations 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDataset(args)
			if err != nil {
				return err
			}

			params := a.cfg.Params()
			if cmd.Flags().Changed("clusters") {
				params.KMeans.Clusters = clusters
			}
			if cmd.Flags().Changed("iterations") {
				params.KMeans.Iterations = iterations
			}

			assignment, err := circuits.NewKMeansAssignment(params, d.Vectors)
			if err != nil {
				return err
			}

			cfg := params.FixedPoint
			// a vector tied between clusters counts towards each of them
			sizes := make([]int, params.KMeans.Clusters)
			for _, row := range assignment.Indicators {
				for j, v := range bigInts(row) {
					if v.Sign() != 0 {
						sizes[j]++
					}
				}
			}
			for j, c := range assignment.Centroids {
				printVector(cmd, fmt.Sprintf("centroid %d", j), cfg.DequantizeVector(bigInts(c)))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sizes:       %v\n", sizes)
			printRoot(cmd, assignment.Root.(*big.Int))

			n, dim := len(d.Vectors), d.Dimension()
			return a.run(cmd, "kmeans", circuits.NewKMeansCircuit(params, n, dim), assignment)
		},
	}
	cmd.Flags().IntVar(&clusters, "clusters", 0, "Number of clusters (overrides kmeans.clusters)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Number of iterations (overrides kmeans.iterations)")
	return cmd
}

func (a *app) commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit [dataset]",
		Short: "Compute and prove the Merkle commitment of a dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDataset(args)
			if err != nil {
				return err
			}

			params := a.cfg.Params()
			assignment, err := circuits.NewMerkleAssignment(params, d.Vectors)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hasher:      %s\n", params.Hasher)
			printRoot(cmd, assignment.Root.(*big.Int))

			n, dim := len(d.Vectors), d.Dimension()
			return a.run(cmd, "commit", circuits.NewMerkleCircuit(params, n, dim), assignment)
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dataset]",
		Short: "Print the Merkle root of a dataset each time it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Data.Path
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no dataset given (pass a path or set data.path)")
			}

			committer := watch.Committer{
				FixedPoint: a.cfg.FixedPoint,
				Hasher:     a.cfg.Circuit.Hasher,
				Normalize:  a.cfg.Data.Normalize,
			}
			updates := make(chan watch.Update, 16)
			w, err := watch.NewWatcher(path, committer, updates)
			if err != nil {
				return err
			}
			defer w.Close()
			w.SetErrorCallback(func(err error) {
				a.logger.Warn("watcher error", "error", err)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go w.Start(ctx)

			a.logger.Info("watching dataset", "path", w.Path())
			return a.printUpdates(ctx, cmd, updates)
		},
	}
}

func (a *app) printUpdates(ctx context.Context, cmd *cobra.Command, updates <-chan watch.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if u.Err != nil {
				a.logger.Warn("dataset not committed", "op", u.Op, "error", u.Err)
				continue
			}
			a.logger.Info("dataset committed", "op", u.Op, "vectors", u.Vectors, "dimension", u.Dimension)
			printRoot(cmd, u.Root)
		}
	}
}

func (a *app) generateCmd() *cobra.Command {
	var (
		count int
		dim   int
		upper float64
		seed  uint64
	)

	cmd := &cobra.Command{
		Use:   "generate <output>",
		Short: "Write a random dataset (.json, .yaml or .fvecs)",
		Args:  cobra.ExactArgs(1),
		// generation needs no circuit configuration
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 || dim <= 0 || upper <= 0 {
				return fmt.Errorf("count, dim and max must be positive")
			}
			d := dataset.Generate(count, dim, upper, seed)
			if err := dataset.Save(args[0], d); err != nil {
				return err
			}
			a.logger.Info("dataset written", "path", args[0], "vectors", count, "dimension", dim)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "Number of vectors")
	cmd.Flags().IntVar(&dim, "dim", 8, "Vector dimension")
	cmd.Flags().Float64Var(&upper, "max", 1, "Components are drawn from [0, max)")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	return cmd
}

// nearestMatches returns the indices of every vector at the minimum
// quantized distance from query.
func nearestMatches(params circuits.Params, query []float64, vectors [][]float64) ([]int, error) {
	cfg := params.FixedPoint
	dist, err := distance.Native(cfg, params.Metric)
	if err != nil {
		return nil, err
	}
	qq, err := cfg.QuantizeVector(query)
	if err != nil {
		return nil, err
	}
	qv, err := cfg.QuantizeMatrix(vectors)
	if err != nil {
		return nil, err
	}
	_, matches, err := vectordb.ComputeNearestVector(cfg, qq, qv, dist)
	return matches, err
}

func bigInts(v []frontend.Variable) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = x.(*big.Int)
	}
	return out
}
