// internal/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mymonad/zkvdb/pkg/circuits"
	"github.com/mymonad/zkvdb/pkg/distance"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

func TestExpandPath_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/datasets/sift.fvecs", filepath.Join(home, "datasets", "sift.fvecs")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~other/path", "~other/path"},
		{"~", home},
	}

	for _, tt := range tests {
		result := ExpandPath(tt.input)
		if result != tt.expected {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	if paths.ConfigDir == "" {
		t.Error("ConfigDir should not be empty")
	}
	if paths.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if filepath.Dir(paths.ConfigFile) != paths.ConfigDir {
		t.Errorf("ConfigFile %q should live in %q", paths.ConfigFile, paths.ConfigDir)
	}
	if filepath.Dir(paths.ProofDir) != paths.DataDir {
		t.Errorf("ProofDir %q should live in %q", paths.ProofDir, paths.DataDir)
	}
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	paths := Paths{
		ConfigDir: filepath.Join(tmpDir, "config", "zkvdb"),
		DataDir:   filepath.Join(tmpDir, "data", "zkvdb"),
		ProofDir:  filepath.Join(tmpDir, "data", "zkvdb", "proofs"),
	}

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{paths.ConfigDir, paths.DataDir, paths.ProofDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("%s should exist after EnsureDirectories: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories should be idempotent: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.FixedPoint.PrecisionBits != 32 {
		t.Errorf("expected precision 32, got %d", cfg.FixedPoint.PrecisionBits)
	}
	if cfg.Circuit.Backend != circuits.BackendPlonk {
		t.Errorf("expected plonk backend, got %s", cfg.Circuit.Backend)
	}
	if cfg.Params() != circuits.DefaultParams() {
		t.Errorf("Params() = %+v, want %+v", cfg.Params(), circuits.DefaultParams())
	}
}

func TestLoad_FromTOML(t *testing.T) {
	tomlContent := `
[fixed_point]
precision_bits = 48
lookup_bits = 10

[circuit]
metric = "cosine"
hasher = "mimc"
backend = "groth16"
tolerance = 0.001

[kmeans]
clusters = 3
iterations = 7

[cache]
size = 2

[data]
path = "~/vectors.json"
normalize = true
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FixedPoint.PrecisionBits != 48 || cfg.FixedPoint.LookupBits != 10 {
		t.Errorf("unexpected fixed point config %+v", cfg.FixedPoint)
	}
	if cfg.Circuit.Metric != distance.MetricCosine {
		t.Errorf("expected cosine metric, got %s", cfg.Circuit.Metric)
	}
	if cfg.Circuit.Hasher != vectordb.HasherMiMC {
		t.Errorf("expected mimc hasher, got %s", cfg.Circuit.Hasher)
	}
	if cfg.Circuit.Backend != circuits.BackendGroth16 {
		t.Errorf("expected groth16 backend, got %s", cfg.Circuit.Backend)
	}
	if cfg.KMeans.Clusters != 3 || cfg.KMeans.Iterations != 7 {
		t.Errorf("unexpected kmeans params %+v", cfg.KMeans)
	}
	if cfg.Cache.Size != 2 {
		t.Errorf("expected cache size 2, got %d", cfg.Cache.Size)
	}
	if !cfg.Data.Normalize {
		t.Error("expected normalize to be set")
	}

	home, _ := os.UserHomeDir()
	if cfg.Data.Path != filepath.Join(home, "vectors.json") {
		t.Errorf("data path was not expanded: %q", cfg.Data.Path)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte("[circuit]\nmetric = \"manhattan\"\n"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Circuit.Metric != distance.MetricManhattan {
		t.Errorf("expected manhattan metric, got %s", cfg.Circuit.Metric)
	}
	if cfg.FixedPoint != defaults.FixedPoint {
		t.Errorf("fixed point config should keep defaults, got %+v", cfg.FixedPoint)
	}
	if cfg.Circuit.Hasher != defaults.Circuit.Hasher {
		t.Errorf("hasher should keep default, got %s", cfg.Circuit.Hasher)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[circuit\nmetric = "},
		{"unknown metric", "[circuit]\nmetric = \"chebyshev\"\n"},
		{"unknown backend", "[circuit]\nbackend = \"stark\"\n"},
		{"low precision", "[fixed_point]\nprecision_bits = 4\n"},
		{"zero clusters", "[kmeans]\nclusters = 0\n"},
		{"zero cache", "[cache]\nsize = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(tmpFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}
			if _, err := Load(tmpFile); err == nil {
				t.Error("expected error for invalid config")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestValidate_WrapsSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Size = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Circuit.Tolerance = -1
	if err := cfg.Validate(); !errors.Is(err, circuits.ErrInvalidParams) {
		t.Errorf("expected circuits.ErrInvalidParams, got %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Circuit.Metric = distance.MetricHamming
	cfg.KMeans.Clusters = 4
	cfg.Data.ProofDir = filepath.Join(t.TempDir(), "proofs")

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != cfg {
		t.Errorf("round trip mismatch: got %+v, want %+v", *loaded, cfg)
	}
}
