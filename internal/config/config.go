// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/mymonad/zkvdb/pkg/circuits"
	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Paths holds XDG-compliant paths for zkvdb.
type Paths struct {
	ConfigDir  string // ~/.config/zkvdb
	DataDir    string // ~/.local/share/zkvdb
	ConfigFile string // ~/.config/zkvdb/config.toml
	ProofDir   string // ~/.local/share/zkvdb/proofs
}

// ExpandPath expands ~ to the user's home directory.
// Returns the path unchanged if it doesn't start with ~.
// Panics if home directory cannot be determined when ~ expansion is needed.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// DefaultPaths returns the default XDG-compliant paths.
// Panics if the user's home directory cannot be determined.
func DefaultPaths() Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Sprintf("failed to get home directory: %v", err))
	}
	configDir := filepath.Join(home, ".config", "zkvdb")
	dataDir := filepath.Join(home, ".local", "share", "zkvdb")

	return Paths{
		ConfigDir:  configDir,
		DataDir:    dataDir,
		ConfigFile: filepath.Join(configDir, "config.toml"),
		ProofDir:   filepath.Join(dataDir, "proofs"),
	}
}

// EnsureDirectories creates config, data and proof directories if they don't exist.
func (p Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.ProofDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

// Config holds configuration for the zkvdb command.
type Config struct {
	FixedPoint fixedpoint.Config     `toml:"fixed_point"`
	Circuit    CircuitConfig         `toml:"circuit"`
	KMeans     vectordb.KMeansParams `toml:"kmeans"`
	Cache      CacheConfig           `toml:"cache"`
	Data       DataConfig            `toml:"data"`
}

// CircuitConfig holds circuit and proving settings.
type CircuitConfig struct {
	Metric    distance.Metric  `toml:"metric"`
	Hasher    vectordb.Hasher  `toml:"hasher"`
	Backend   circuits.Backend `toml:"backend"`
	Tolerance float64          `toml:"tolerance"`
}

// CacheConfig holds compiled-circuit cache settings.
type CacheConfig struct {
	// Size is the number of compiled circuits kept in memory.
	Size int `toml:"size"`
}

// DataConfig holds dataset and output paths.
type DataConfig struct {
	Path      string `toml:"path"`
	Normalize bool   `toml:"normalize"`
	ProofDir  string `toml:"proof_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	params := circuits.DefaultParams()
	return Config{
		FixedPoint: params.FixedPoint,
		Circuit: CircuitConfig{
			Metric:    params.Metric,
			Hasher:    params.Hasher,
			Backend:   circuits.BackendPlonk,
			Tolerance: params.Tolerance,
		},
		KMeans: params.KMeans,
		Cache: CacheConfig{
			Size: 8,
		},
		Data: DataConfig{
			ProofDir: DefaultPaths().ProofDir,
		},
	}
}

// Params returns the circuit parameters described by c.
func (c Config) Params() circuits.Params {
	return circuits.Params{
		FixedPoint: c.FixedPoint,
		Metric:     c.Circuit.Metric,
		Hasher:     c.Circuit.Hasher,
		KMeans:     c.KMeans,
		Tolerance:  c.Circuit.Tolerance,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := circuits.ParseBackend(string(c.Circuit.Backend)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("%w: cache size must be positive, got %d", ErrInvalidConfig, c.Cache.Size)
	}
	return nil
}

// Load loads a Config from a TOML file on top of DefaultConfig.
// Paths with ~ are expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.Data.Path = ExpandPath(cfg.Data.Path)
	cfg.Data.ProofDir = ExpandPath(cfg.Data.ProofDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
