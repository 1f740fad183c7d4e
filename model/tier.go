// Package model provides tier-based model selection for LLM requests.
// Instead of hardcoding model names, callers specify a tier (fast, balanced,
// advanced) and the registry resolves it per provider, with per-provider
// health tracking feeding the manager's fallback decisions.
package model

// Tier represents a model quality/latency trade-off.
type Tier string

const (
	// TierFast is for quick responses and simple classification tasks.
	TierFast Tier = "fast"

	// TierBalanced is the default for research and documentation work.
	TierBalanced Tier = "balanced"

	// TierAdvanced is for deep analysis and validation.
	TierAdvanced Tier = "advanced"
)

// IsValid checks if a tier string is a known tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierFast, TierBalanced, TierAdvanced:
		return true
	}
	return false
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// ParseTier converts a string to a Tier, returning TierBalanced for
// unknown values so callers always get a usable tier.
func ParseTier(s string) Tier {
	t := Tier(s)
	if t.IsValid() {
		return t
	}
	return TierBalanced
}
