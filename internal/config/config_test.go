package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/pampax/internal/policy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.Backend != "dolt" {
		t.Errorf("expected storage.backend dolt, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.EmbeddingDim != 384 {
		t.Errorf("expected embedding_dim 384, got %d", cfg.Storage.EmbeddingDim)
	}

	if len(cfg.Scan.Languages) != 1 || cfg.Scan.Languages[0] != "go" {
		t.Errorf("expected default language [go], got %v", cfg.Scan.Languages)
	}
	if len(cfg.Scan.Exclude) != 6 {
		t.Errorf("expected 6 exclude patterns, got %d", len(cfg.Scan.Exclude))
	}

	if cfg.Metrics.PageRankDamping != 0.85 {
		t.Errorf("expected pagerank_damping 0.85, got %f", cfg.Metrics.PageRankDamping)
	}
	if cfg.Metrics.PageRankIterations != 100 {
		t.Errorf("expected pagerank_iterations 100, got %d", cfg.Metrics.PageRankIterations)
	}
	if cfg.Metrics.KeystoneThreshold != 0.30 {
		t.Errorf("expected keystone_threshold 0.30, got %f", cfg.Metrics.KeystoneThreshold)
	}
	if cfg.Metrics.BottleneckThreshold != 0.20 {
		t.Errorf("expected bottleneck_threshold 0.20, got %f", cfg.Metrics.BottleneckThreshold)
	}

	if cfg.Budget.DefaultMaxTokens != 4000 {
		t.Errorf("expected default_max_tokens 4000, got %d", cfg.Budget.DefaultMaxTokens)
	}
	if cfg.Budget.DefaultHops != 1 {
		t.Errorf("expected default_hops 1, got %d", cfg.Budget.DefaultHops)
	}

	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("expected ttl_seconds 300, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Cache.SearchCap != 256 || cfg.Cache.TraversalCap != 256 || cfg.Cache.BundleCap != 256 {
		t.Errorf("expected caps 256/256/256, got %d/%d/%d", cfg.Cache.SearchCap, cfg.Cache.TraversalCap, cfg.Cache.BundleCap)
	}

	if cfg.Timeouts.ClassifyMS != 50 || cfg.Timeouts.PlanMS != 50 || cfg.Timeouts.RetrieveMS != 5000 ||
		cfg.Timeouts.ExpandMS != 3000 || cfg.Timeouts.PackMS != 1000 {
		t.Errorf("unexpected timeouts: %+v", cfg.Timeouts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid storage backend", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"zero embedding dim", func(c *Config) { c.Storage.EmbeddingDim = 0 }, true},
		{"pagerank damping too high", func(c *Config) { c.Metrics.PageRankDamping = 1.5 }, true},
		{"pagerank damping negative", func(c *Config) { c.Metrics.PageRankDamping = -0.1 }, true},
		{"pagerank iterations zero", func(c *Config) { c.Metrics.PageRankIterations = 0 }, true},
		{"keystone threshold too high", func(c *Config) { c.Metrics.KeystoneThreshold = 1.5 }, true},
		{"bottleneck threshold negative", func(c *Config) { c.Metrics.BottleneckThreshold = -0.1 }, true},
		{"zero max_tokens", func(c *Config) { c.Budget.DefaultMaxTokens = 0 }, true},
		{"negative hops", func(c *Config) { c.Budget.DefaultHops = -1 }, true},
		{"zero ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, true},
		{"zero search cap", func(c *Config) { c.Cache.SearchCap = 0 }, true},
		{"zero retrieve timeout", func(c *Config) { c.Timeouts.RetrieveMS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	defaults := DefaultConfig()

	t.Run("empty loaded uses all defaults", func(t *testing.T) {
		loaded := &Config{}
		merged := Merge(loaded, defaults)

		if merged.Storage.Backend != defaults.Storage.Backend {
			t.Errorf("expected backend %s, got %s", defaults.Storage.Backend, merged.Storage.Backend)
		}
		if merged.Metrics.PageRankDamping != defaults.Metrics.PageRankDamping {
			t.Errorf("expected damping %f, got %f", defaults.Metrics.PageRankDamping, merged.Metrics.PageRankDamping)
		}
		if len(merged.Policy) != 0 {
			t.Errorf("expected empty policy overrides, got %v", merged.Policy)
		}
	})

	t.Run("loaded values take precedence", func(t *testing.T) {
		loaded := &Config{
			Budget: BudgetConfig{
				DefaultMaxTokens: 8000,
			},
			Metrics: MetricsConfig{
				PageRankDamping: 0.90,
			},
			Policy: map[string]PolicyOverride{
				"symbol": {MaxDepth: 5},
			},
		}
		merged := Merge(loaded, defaults)

		if merged.Budget.DefaultMaxTokens != 8000 {
			t.Errorf("expected max_tokens 8000, got %d", merged.Budget.DefaultMaxTokens)
		}
		if merged.Metrics.PageRankDamping != 0.90 {
			t.Errorf("expected damping 0.90, got %f", merged.Metrics.PageRankDamping)
		}
		if merged.Policy["symbol"].MaxDepth != 5 {
			t.Errorf("expected policy override to carry through, got %+v", merged.Policy)
		}

		// Unset values should use defaults
		if merged.Budget.DefaultHops != defaults.Budget.DefaultHops {
			t.Errorf("expected default hops %d, got %d", defaults.Budget.DefaultHops, merged.Budget.DefaultHops)
		}
		if merged.Cache.TTLSeconds != defaults.Cache.TTLSeconds {
			t.Errorf("expected default ttl %d, got %d", defaults.Cache.TTLSeconds, merged.Cache.TTLSeconds)
		}
	})
}

func TestFindConfigDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pampax-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	projectDir := filepath.Join(tmpDir, "project")
	subDir := filepath.Join(projectDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("no config dir returns error", func(t *testing.T) {
		_, err := FindConfigDir(subDir)
		if err == nil {
			t.Error("expected error when no .pampax directory exists")
		}
	})

	configDir := filepath.Join(projectDir, ConfigDirName)
	if err := os.Mkdir(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("finds config dir in current directory", func(t *testing.T) {
		found, err := FindConfigDir(projectDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})

	t.Run("finds config dir in parent directory", func(t *testing.T) {
		found, err := FindConfigDir(subDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pampax-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("creates config directory", func(t *testing.T) {
		dir, err := EnsureConfigDir(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		expectedDir := filepath.Join(tmpDir, ConfigDirName)
		if dir != expectedDir {
			t.Errorf("expected %s, got %s", expectedDir, dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("config directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("returns existing directory", func(t *testing.T) {
		dir, err := EnsureConfigDir(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		expectedDir := filepath.Join(tmpDir, ConfigDirName)
		if dir != expectedDir {
			t.Errorf("expected %s, got %s", expectedDir, dir)
		}
	})
}

func TestLoadFromPath(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pampax-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("loads valid yaml config file", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		content := `
scan:
  languages: [go, python]
  exclude:
    - vendor/**
budget:
  default_max_tokens: 8000
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		if len(cfg.Scan.Languages) != 2 {
			t.Errorf("expected 2 languages, got %d", len(cfg.Scan.Languages))
		}
		if cfg.Budget.DefaultMaxTokens != 8000 {
			t.Errorf("expected max_tokens 8000, got %d", cfg.Budget.DefaultMaxTokens)
		}

		// Defaults applied for missing fields
		if cfg.Metrics.PageRankDamping != 0.85 {
			t.Errorf("expected default damping 0.85, got %f", cfg.Metrics.PageRankDamping)
		}
		if cfg.Storage.Backend != "dolt" {
			t.Errorf("expected default backend dolt, got %s", cfg.Storage.Backend)
		}
	})

	t.Run("loads valid toml config file", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.toml")
		content := `
[budget]
default_max_tokens = 6000

[metrics]
pagerank_damping = 0.75
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if cfg.Budget.DefaultMaxTokens != 6000 {
			t.Errorf("expected max_tokens 6000, got %d", cfg.Budget.DefaultMaxTokens)
		}
		if cfg.Metrics.PageRankDamping != 0.75 {
			t.Errorf("expected damping 0.75, got %f", cfg.Metrics.PageRankDamping)
		}
		if cfg.Storage.Backend != "dolt" {
			t.Errorf("expected default backend dolt, got %s", cfg.Storage.Backend)
		}
	})

	t.Run("returns defaults for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromPath(filepath.Join(tmpDir, "nonexistent.yaml"))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		defaults := DefaultConfig()
		if cfg.Budget.DefaultMaxTokens != defaults.Budget.DefaultMaxTokens {
			t.Errorf("expected default config")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte("invalid: yaml: content:\n  bad indent-"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadFromPath(configPath)
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("returns error for invalid config values", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "bad-values.yaml")
		content := `
storage:
  backend: postgres
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadFromPath(configPath)
		if err == nil {
			t.Error("expected error for invalid storage backend")
		}
	})
}

func TestLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pampax-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("returns defaults when no config dir exists", func(t *testing.T) {
		cfg, err := Load(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		defaults := DefaultConfig()
		if cfg.Budget.DefaultMaxTokens != defaults.Budget.DefaultMaxTokens {
			t.Errorf("expected default config")
		}
	})

	t.Run("loads config from .pampax directory", func(t *testing.T) {
		configDir := filepath.Join(tmpDir, ConfigDirName)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			t.Fatal(err)
		}

		content := `
budget:
  default_max_tokens: 2000
`
		configPath := filepath.Join(configDir, ConfigFileName)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if cfg.Budget.DefaultMaxTokens != 2000 {
			t.Errorf("expected max_tokens 2000, got %d", cfg.Budget.DefaultMaxTokens)
		}
	})
}

func TestSaveDefault(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pampax-config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	t.Run("creates default config file", func(t *testing.T) {
		configPath, err := SaveDefault(tmpDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		expectedPath := filepath.Join(tmpDir, ConfigDirName, ConfigFileName)
		if configPath != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, configPath)
		}

		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Errorf("failed to load saved config: %v", err)
		}

		defaults := DefaultConfig()
		if cfg.Budget.DefaultMaxTokens != defaults.Budget.DefaultMaxTokens {
			t.Errorf("saved config doesn't match defaults")
		}
	})

	t.Run("fails if config already exists", func(t *testing.T) {
		_, err := SaveDefault(tmpDir)
		if err == nil {
			t.Error("expected error when config already exists")
		}
	})
}

func TestApplyPolicyOverride(t *testing.T) {
	base := policy.Policy{
		MaxDepth:           2,
		EarlyStopThreshold: 10,
		SeedWeights:        map[string]float64{"lex": 0.5, "vec": 0.5},
	}

	t.Run("zero-value override leaves base untouched", func(t *testing.T) {
		got := ApplyPolicyOverride(base, PolicyOverride{})
		if got.MaxDepth != base.MaxDepth || got.EarlyStopThreshold != base.EarlyStopThreshold {
			t.Errorf("expected base unchanged, got %+v", got)
		}
		if len(got.SeedWeights) != len(base.SeedWeights) {
			t.Errorf("expected seed weights unchanged, got %+v", got.SeedWeights)
		}
	})

	t.Run("override replaces specified fields", func(t *testing.T) {
		override := PolicyOverride{
			MaxDepth:    5,
			SeedWeights: map[string]float64{"sym": 1.0},
		}
		got := ApplyPolicyOverride(base, override)
		if got.MaxDepth != 5 {
			t.Errorf("expected max depth 5, got %d", got.MaxDepth)
		}
		if got.EarlyStopThreshold != base.EarlyStopThreshold {
			t.Errorf("expected unset field to keep base value, got %d", got.EarlyStopThreshold)
		}
		if got.SeedWeights["sym"] != 1.0 || len(got.SeedWeights) != 1 {
			t.Errorf("expected seed weights replaced wholesale, got %+v", got.SeedWeights)
		}
		// base must not be mutated
		if len(base.SeedWeights) != 2 {
			t.Errorf("expected base seed weights untouched, got %+v", base.SeedWeights)
		}
	})
}
