package model

import "sync"

// ProviderConfig describes a configured LLM provider endpoint.
type ProviderConfig struct {
	// URL is the API endpoint URL. Empty uses the provider's default.
	URL string `json:"url,omitempty"`

	// Models overrides the provider's compiled-in tier defaults.
	Models map[Tier]string `json:"models,omitempty"`

	// MaxTokens caps completion length. 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Registry manages provider configuration, preference order, and health.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]*ProviderConfig
	health    map[string]*health
}

// NewRegistry creates a registry with providers in preference order.
func NewRegistry(order []string, providers map[string]*ProviderConfig) *Registry {
	if providers == nil {
		providers = make(map[string]*ProviderConfig)
	}
	r := &Registry{
		order:     append([]string(nil), order...),
		providers: providers,
		health:    make(map[string]*health),
	}
	for name := range providers {
		r.health[name] = newHealth()
	}
	return r
}

// NewDefaultRegistry creates a registry preferring anthropic, then openai,
// then a local ollama endpoint. Tier defaults come from the providers.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		[]string{"anthropic", "openai", "ollama"},
		map[string]*ProviderConfig{
			"anthropic": {},
			"openai":    {},
			"ollama":    {URL: "http://localhost:11434"},
		},
	)
}

// Order returns the provider preference order.
func (r *Registry) Order() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Config returns the configuration for a provider, or nil if unregistered.
func (r *Registry) Config(name string) *ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// Registered reports whether a provider is configured.
func (r *Registry) Registered(name string) bool {
	return r.Config(name) != nil
}

// ModelOverride returns the configured model for a provider/tier pair,
// or empty when the provider's compiled-in default should apply.
func (r *Registry) ModelOverride(name string, tier Tier) string {
	cfg := r.Config(name)
	if cfg == nil || cfg.Models == nil {
		return ""
	}
	return cfg.Models[tier]
}

// healthFor returns the provider's health record, creating one if needed.
func (r *Registry) healthFor(name string) *health {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	if !ok {
		h = newHealth()
		r.health[name] = h
	}
	return h
}

// MarkProviderSuccess resets the provider's error count.
func (r *Registry) MarkProviderSuccess(name string) {
	r.healthFor(name).markSuccess()
}

// MarkProviderFailure records a failure; the provider becomes unavailable
// once consecutive failures reach the trip threshold.
func (r *Registry) MarkProviderFailure(name string, errMsg string) {
	r.healthFor(name).markFailure(errMsg)
}

// IsProviderAvailable reports whether the provider's circuit is closed.
func (r *Registry) IsProviderAvailable(name string) bool {
	return r.healthFor(name).snapshot().Available
}

// ResetProviderErrors returns the provider to its initial healthy state.
// There is no time-based auto-heal; recovery is explicit.
func (r *Registry) ResetProviderErrors(name string) {
	r.healthFor(name).reset()
}

// ProviderHealth returns a snapshot of one provider's health.
func (r *Registry) ProviderHealth(name string) Health {
	return r.healthFor(name).snapshot()
}

// HealthReport returns health snapshots for every known provider.
func (r *Registry) HealthReport() map[string]Health {
	r.mu.RLock()
	names := make([]string, 0, len(r.health))
	for name := range r.health {
		names = append(names, name)
	}
	r.mu.RUnlock()

	report := make(map[string]Health, len(names))
	for _, name := range names {
		report[name] = r.healthFor(name).snapshot()
	}
	return report
}
