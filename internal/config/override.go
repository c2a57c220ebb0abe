package config

import "github.com/anthropics/pampax/internal/policy"

// ApplyPolicyOverride layers a config-file PolicyOverride onto a
// policy.Policy selected for one intent. Only non-zero fields in
// override replace the base value; SeedWeights replaces the whole map
// rather than merging key-by-key, since a partial weight vector would
// not sum the way spec.md §4.3 requires.
func ApplyPolicyOverride(base policy.Policy, override PolicyOverride) policy.Policy {
	result := base
	if override.MaxDepth != 0 {
		result.MaxDepth = override.MaxDepth
	}
	if override.EarlyStopThreshold != 0 {
		result.EarlyStopThreshold = override.EarlyStopThreshold
	}
	if len(override.SeedWeights) > 0 {
		result.SeedWeights = make(map[string]float64, len(override.SeedWeights))
		for k, v := range override.SeedWeights {
			result.SeedWeights[k] = v
		}
	}
	return result
}
