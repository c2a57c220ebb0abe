// Package config loads and validates the pampax configuration file:
// storage backend, scan excludes, graph metrics parameters, default
// retrieval budget, cache limits, per-intent policy overrides, and
// per-phase timeouts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default config file name, tried before ConfigFileNameTOML.
const ConfigFileName = "config.yaml"

// ConfigFileNameTOML is the alternate config file name, used when config.yaml
// is absent and an operator prefers TOML.
const ConfigFileNameTOML = "config.toml"

// ConfigDirName is the name of the pampax configuration directory.
const ConfigDirName = ".pampax"

// Config holds all pampax configuration.
type Config struct {
	Storage  StorageConfig   `yaml:"storage" toml:"storage"`
	Scan     ScanConfig      `yaml:"scan" toml:"scan"`
	Metrics  MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Budget   BudgetConfig    `yaml:"budget" toml:"budget"`
	Cache    CacheConfig     `yaml:"cache" toml:"cache"`
	Policy   map[string]PolicyOverride `yaml:"policy" toml:"policy"`
	Timeouts TimeoutConfig   `yaml:"timeouts" toml:"timeouts"`
}

// StorageConfig selects and configures the span/edge/memory store. The
// teacher's own Config struct set this field from DefaultConfig without
// ever declaring it, a latent bug this version corrects.
type StorageConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`
	EmbeddingDim int    `yaml:"embedding_dim" toml:"embedding_dim"`
}

// ScanConfig holds configuration for code scanning.
type ScanConfig struct {
	Languages []string `yaml:"languages" toml:"languages"`
	Exclude   []string `yaml:"exclude" toml:"exclude"`
}

// MetricsConfig holds configuration for graph centrality computation,
// consumed by internal/metrics.
type MetricsConfig struct {
	PageRankDamping     float64 `yaml:"pagerank_damping" toml:"pagerank_damping"`
	PageRankIterations  int     `yaml:"pagerank_iterations" toml:"pagerank_iterations"`
	KeystoneThreshold   float64 `yaml:"keystone_threshold" toml:"keystone_threshold"`
	BottleneckThreshold float64 `yaml:"bottleneck_threshold" toml:"bottleneck_threshold"`
}

// BudgetConfig holds the default retrieval budget applied when a
// request does not specify its own.
type BudgetConfig struct {
	DefaultMaxTokens int `yaml:"default_max_tokens" toml:"default_max_tokens"`
	DefaultHops      int `yaml:"default_hops" toml:"default_hops"`
}

// CacheConfig holds TTL and LRU cap settings for the three cache
// namespaces (C7): search, traversal, and bundle-plan.
type CacheConfig struct {
	TTLSeconds   int `yaml:"ttl_seconds" toml:"ttl_seconds"`
	SearchCap    int `yaml:"search_cap" toml:"search_cap"`
	TraversalCap int `yaml:"traversal_cap" toml:"traversal_cap"`
	BundleCap    int `yaml:"bundle_cap" toml:"bundle_cap"`
}

// PolicyOverride overrides a subset of a policy.Policy's fields for one
// intent kind. Zero values mean "use the built-in default". It has no
// boolean fields, so IncludeSymbols, IncludeFiles and IncludeContent
// always keep the built-in policy's values.
type PolicyOverride struct {
	MaxDepth           int                `yaml:"max_depth,omitempty" toml:"max_depth,omitempty"`
	EarlyStopThreshold int                `yaml:"early_stop_threshold,omitempty" toml:"early_stop_threshold,omitempty"`
	SeedWeights        map[string]float64 `yaml:"seed_weights,omitempty" toml:"seed_weights,omitempty"`
}

// TimeoutConfig holds per-phase deadlines in milliseconds (spec.md §4.10
// / §9's phase budget table).
type TimeoutConfig struct {
	ClassifyMS int `yaml:"classify_ms" toml:"classify_ms"`
	PlanMS     int `yaml:"plan_ms" toml:"plan_ms"`
	RetrieveMS int `yaml:"retrieve_ms" toml:"retrieve_ms"`
	ExpandMS   int `yaml:"expand_ms" toml:"expand_ms"`
	PackMS     int `yaml:"pack_ms" toml:"pack_ms"`
}

// ErrConfigNotFound is returned when no config file can be found.
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .pampax/config.yaml (or config.toml), falling
// back to defaults. It searches for the config directory starting from
// workDir and walking up the directory tree. If no config dir is found,
// returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}

	yamlPath := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return LoadFromPath(yamlPath)
	}

	tomlPath := filepath.Join(configDir, ConfigFileNameTOML)
	if _, err := os.Stat(tomlPath); err == nil {
		return LoadFromPath(tomlPath)
	}

	return DefaultConfig(), nil
}

// LoadFromPath reads config from a specific path, dispatching to the
// YAML or TOML decoder by file extension. Merges loaded config with
// defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), loaded); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	merged := Merge(loaded, DefaultConfig())

	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// FindConfigDir locates the .pampax directory by walking up from startDir.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .pampax directory if it doesn't exist.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are within their declared ranges.
func Validate(cfg *Config) error {
	if cfg.Storage.Backend != "dolt" {
		return fmt.Errorf("%w: storage.backend must be %q, got %q", ErrInvalidConfig, "dolt", cfg.Storage.Backend)
	}
	if cfg.Storage.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: storage.embedding_dim must be positive, got %d", ErrInvalidConfig, cfg.Storage.EmbeddingDim)
	}

	if cfg.Metrics.PageRankDamping < 0 || cfg.Metrics.PageRankDamping > 1 {
		return fmt.Errorf("%w: metrics.pagerank_damping must be between 0 and 1, got %f",
			ErrInvalidConfig, cfg.Metrics.PageRankDamping)
	}
	if cfg.Metrics.PageRankIterations <= 0 {
		return fmt.Errorf("%w: metrics.pagerank_iterations must be positive, got %d",
			ErrInvalidConfig, cfg.Metrics.PageRankIterations)
	}
	if cfg.Metrics.KeystoneThreshold < 0 || cfg.Metrics.KeystoneThreshold > 1 {
		return fmt.Errorf("%w: metrics.keystone_threshold must be between 0 and 1, got %f",
			ErrInvalidConfig, cfg.Metrics.KeystoneThreshold)
	}
	if cfg.Metrics.BottleneckThreshold < 0 || cfg.Metrics.BottleneckThreshold > 1 {
		return fmt.Errorf("%w: metrics.bottleneck_threshold must be between 0 and 1, got %f",
			ErrInvalidConfig, cfg.Metrics.BottleneckThreshold)
	}

	if cfg.Budget.DefaultMaxTokens <= 0 {
		return fmt.Errorf("%w: budget.default_max_tokens must be positive, got %d",
			ErrInvalidConfig, cfg.Budget.DefaultMaxTokens)
	}
	if cfg.Budget.DefaultHops < 0 {
		return fmt.Errorf("%w: budget.default_hops must be non-negative, got %d",
			ErrInvalidConfig, cfg.Budget.DefaultHops)
	}

	if cfg.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("%w: cache.ttl_seconds must be positive, got %d", ErrInvalidConfig, cfg.Cache.TTLSeconds)
	}
	for name, cap := range map[string]int{
		"cache.search_cap": cfg.Cache.SearchCap, "cache.traversal_cap": cfg.Cache.TraversalCap,
		"cache.bundle_cap": cfg.Cache.BundleCap,
	} {
		if cap <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, cap)
		}
	}

	for _, ms := range map[string]int{
		"timeouts.classify_ms": cfg.Timeouts.ClassifyMS, "timeouts.plan_ms": cfg.Timeouts.PlanMS,
		"timeouts.retrieve_ms": cfg.Timeouts.RetrieveMS, "timeouts.expand_ms": cfg.Timeouts.ExpandMS,
		"timeouts.pack_ms": cfg.Timeouts.PackMS,
	} {
		if ms <= 0 {
			return fmt.Errorf("%w: phase timeout must be positive, got %d", ErrInvalidConfig, ms)
		}
	}

	return nil
}

// SaveDefault writes the default configuration to .pampax/config.yaml in
// workDir. Creates the .pampax directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# pampax configuration\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
