// Command zkvdb builds, checks and proves verifiable vector-database circuits
// over datasets on disk.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mymonad/zkvdb/internal/config"
	"github.com/mymonad/zkvdb/pkg/circuits"
	"github.com/mymonad/zkvdb/pkg/dataset"
	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

// Execution modes.
const (
	modeMock  = "mock"
	modeCount = "count"
	modeProve = "prove"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	mode       string
	backend    string
	metric     string
	hasher     string
	precision  int
	lookupBits int
	tolerance  float64
	normalize  bool
	logLevel   string
	logFormat  string

	cfg    *config.Config
	cache  *circuits.Cache
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "zkvdb",
		Short: "Verifiable vector database circuits",
		Long: `zkvdb checks and proves statements about private vector datasets:
distances, nearest-vector searches, k-means clusterings and Merkle commitments.

Modes:
  mock   - solve the circuit with the test engine (fast, no proof)
  count  - compile the circuit and report its size
  prove  - compile, set up keys, prove and verify`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to TOML configuration file")
	flags.StringVar(&a.mode, "mode", modeMock, "Execution mode: mock, count, prove")
	flags.StringVar(&a.backend, "backend", "", "Proving backend: plonk, groth16")
	flags.StringVar(&a.metric, "metric", "", "Distance metric: euclidean, manhattan, cosine, hamming")
	flags.StringVar(&a.hasher, "hasher", "", "Merkle hasher: poseidon2, mimc")
	flags.IntVar(&a.precision, "precision", 0, "Fixed-point precision bits")
	flags.IntVar(&a.lookupBits, "lookup-bits", 0, "Lookup table index bits")
	flags.Float64Var(&a.tolerance, "tolerance", 0, "Accepted error on real-valued results")
	flags.BoolVar(&a.normalize, "normalize", false, "Scale dataset vectors to unit length")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "text", "Log format: text, json")

	root.AddCommand(
		a.distanceCmd(),
		a.nearestCmd(),
		a.kmeansCmd(),
		a.commitCmd(),
		a.watchCmd(),
		a.generateCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and configures logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger = newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
	slog.SetDefault(a.logger)
	configureGnarkLogger(cmd.ErrOrStderr(), a.logLevel)

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Circuit.Backend = circuits.Backend(a.backend)
	}
	if flags.Changed("metric") {
		cfg.Circuit.Metric = distance.Metric(a.metric)
	}
	if flags.Changed("hasher") {
		cfg.Circuit.Hasher = vectordb.Hasher(a.hasher)
	}
	if flags.Changed("precision") {
		cfg.FixedPoint.PrecisionBits = a.precision
	}
	if flags.Changed("lookup-bits") {
		cfg.FixedPoint.LookupBits = a.lookupBits
	}
	if flags.Changed("tolerance") {
		cfg.Circuit.Tolerance = a.tolerance
	}
	if flags.Changed("normalize") {
		cfg.Data.Normalize = a.normalize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch a.mode {
	case modeMock, modeCount, modeProve:
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", a.mode, modeMock, modeCount, modeProve)
	}

	cache, err := circuits.NewCache(cfg.Cache.Size)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.cache = cache

	a.logger.Debug("configuration loaded",
		"config", a.configPath,
		"precision", cfg.FixedPoint.PrecisionBits,
		"metric", cfg.Circuit.Metric,
		"hasher", cfg.Circuit.Hasher,
		"backend", cfg.Circuit.Backend,
	)
	return nil
}

// loadConfig reads --config, or the default config file when it exists.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.Load(config.ExpandPath(a.configPath))
	}
	path := config.DefaultPaths().ConfigFile
	if _, err := os.Stat(path); err == nil {
		a.configPath = path
		return config.Load(path)
	}
	cfg := config.DefaultConfig()
	return &cfg, nil
}

// loadDataset loads the dataset named by args, falling back to data.path.
func (a *app) loadDataset(args []string) (*dataset.Dataset, error) {
	path := a.cfg.Data.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, fmt.Errorf("no dataset given (pass a path or set data.path)")
	}

	d, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Data.Normalize {
		if err := d.Normalize(); err != nil {
			return nil, err
		}
	}
	a.logger.Info("dataset loaded", "path", path, "vectors", len(d.Vectors), "dimension", d.Dimension())
	return d, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// configureGnarkLogger routes gnark's compile and prove logs to w in debug
// mode and silences them otherwise.
func configureGnarkLogger(w io.Writer, level string) {
	if parseLevel(level) > slog.LevelDebug {
		logger.Disable()
		return
	}
	logger.Set(zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger())
}
