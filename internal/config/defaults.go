package config

// DefaultConfig returns configuration with sensible defaults, matching
// spec.md's mandated minimums (cache LRU cap >= 256, TTL 5 minutes,
// phase timeouts per §4.10).
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:      "dolt",
			EmbeddingDim: 384,
		},
		Scan: ScanConfig{
			Languages: []string{"go"},
			Exclude: []string{
				"vendor/**",
				"node_modules/**",
				"dist/**",
				"build/**",
				"*_test.go",
				"**/testdata/**",
			},
		},
		Metrics: MetricsConfig{
			PageRankDamping:     0.85,
			PageRankIterations:  100,
			KeystoneThreshold:   0.30,
			BottleneckThreshold: 0.20,
		},
		Budget: BudgetConfig{
			DefaultMaxTokens: 4000,
			DefaultHops:      1,
		},
		Cache: CacheConfig{
			TTLSeconds:   300,
			SearchCap:    256,
			TraversalCap: 256,
			BundleCap:    256,
		},
		Policy: map[string]PolicyOverride{},
		Timeouts: TimeoutConfig{
			ClassifyMS: 50,
			PlanMS:     50,
			RetrieveMS: 5000,
			ExpandMS:   3000,
			PackMS:     1000,
		},
	}
}

// Merge merges loaded config with defaults. Values from loaded config
// take precedence over defaults. Returns a new Config with merged
// values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Storage = mergeStorageConfig(loaded.Storage, defaults.Storage)
	result.Scan = mergeScanConfig(loaded.Scan, defaults.Scan)
	result.Metrics = mergeMetricsConfig(loaded.Metrics, defaults.Metrics)
	result.Budget = mergeBudgetConfig(loaded.Budget, defaults.Budget)
	result.Cache = mergeCacheConfig(loaded.Cache, defaults.Cache)
	result.Timeouts = mergeTimeoutConfig(loaded.Timeouts, defaults.Timeouts)

	if len(loaded.Policy) > 0 {
		result.Policy = loaded.Policy
	} else {
		result.Policy = defaults.Policy
	}

	return result
}

func mergeStorageConfig(loaded, defaults StorageConfig) StorageConfig {
	result := StorageConfig{}
	if loaded.Backend != "" {
		result.Backend = loaded.Backend
	} else {
		result.Backend = defaults.Backend
	}
	if loaded.EmbeddingDim != 0 {
		result.EmbeddingDim = loaded.EmbeddingDim
	} else {
		result.EmbeddingDim = defaults.EmbeddingDim
	}
	return result
}

func mergeScanConfig(loaded, defaults ScanConfig) ScanConfig {
	result := ScanConfig{}
	if len(loaded.Languages) > 0 {
		result.Languages = loaded.Languages
	} else {
		result.Languages = defaults.Languages
	}
	if len(loaded.Exclude) > 0 {
		result.Exclude = loaded.Exclude
	} else {
		result.Exclude = defaults.Exclude
	}
	return result
}

func mergeMetricsConfig(loaded, defaults MetricsConfig) MetricsConfig {
	result := MetricsConfig{}
	if loaded.PageRankDamping != 0 {
		result.PageRankDamping = loaded.PageRankDamping
	} else {
		result.PageRankDamping = defaults.PageRankDamping
	}
	if loaded.PageRankIterations != 0 {
		result.PageRankIterations = loaded.PageRankIterations
	} else {
		result.PageRankIterations = defaults.PageRankIterations
	}
	if loaded.KeystoneThreshold != 0 {
		result.KeystoneThreshold = loaded.KeystoneThreshold
	} else {
		result.KeystoneThreshold = defaults.KeystoneThreshold
	}
	if loaded.BottleneckThreshold != 0 {
		result.BottleneckThreshold = loaded.BottleneckThreshold
	} else {
		result.BottleneckThreshold = defaults.BottleneckThreshold
	}
	return result
}

func mergeBudgetConfig(loaded, defaults BudgetConfig) BudgetConfig {
	result := BudgetConfig{}
	if loaded.DefaultMaxTokens != 0 {
		result.DefaultMaxTokens = loaded.DefaultMaxTokens
	} else {
		result.DefaultMaxTokens = defaults.DefaultMaxTokens
	}
	if loaded.DefaultHops != 0 {
		result.DefaultHops = loaded.DefaultHops
	} else {
		result.DefaultHops = defaults.DefaultHops
	}
	return result
}

func mergeCacheConfig(loaded, defaults CacheConfig) CacheConfig {
	result := CacheConfig{}
	if loaded.TTLSeconds != 0 {
		result.TTLSeconds = loaded.TTLSeconds
	} else {
		result.TTLSeconds = defaults.TTLSeconds
	}
	if loaded.SearchCap != 0 {
		result.SearchCap = loaded.SearchCap
	} else {
		result.SearchCap = defaults.SearchCap
	}
	if loaded.TraversalCap != 0 {
		result.TraversalCap = loaded.TraversalCap
	} else {
		result.TraversalCap = defaults.TraversalCap
	}
	if loaded.BundleCap != 0 {
		result.BundleCap = loaded.BundleCap
	} else {
		result.BundleCap = defaults.BundleCap
	}
	return result
}

func mergeTimeoutConfig(loaded, defaults TimeoutConfig) TimeoutConfig {
	result := TimeoutConfig{}
	if loaded.ClassifyMS != 0 {
		result.ClassifyMS = loaded.ClassifyMS
	} else {
		result.ClassifyMS = defaults.ClassifyMS
	}
	if loaded.PlanMS != 0 {
		result.PlanMS = loaded.PlanMS
	} else {
		result.PlanMS = defaults.PlanMS
	}
	if loaded.RetrieveMS != 0 {
		result.RetrieveMS = loaded.RetrieveMS
	} else {
		result.RetrieveMS = defaults.RetrieveMS
	}
	if loaded.ExpandMS != 0 {
		result.ExpandMS = loaded.ExpandMS
	} else {
		result.ExpandMS = defaults.ExpandMS
	}
	if loaded.PackMS != 0 {
		result.PackMS = loaded.PackMS
	} else {
		result.PackMS = defaults.PackMS
	}
	return result
}
