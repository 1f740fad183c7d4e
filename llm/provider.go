package llm

import (
	"net/http"
	"sync"

	"github.com/c360studio/standards/model"
)

// Provider defines the interface for LLM provider implementations.
// Implementations are stateless adapters; health state lives in the
// model.Registry and is maintained by the Manager.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "ollama").
	Name() string

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for the provider.
	// stream selects the provider's streaming wire format.
	BuildRequestBody(modelName string, req *Request, stream bool) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte, modelName string) (*Response, error)

	// ParseStreamLine extracts text from one line of a streaming response.
	// done is true when the provider signals end of stream; lines carrying
	// no text (keep-alives, events) return empty text.
	ParseStreamLine(line []byte) (text string, done bool, err error)

	// DefaultModels returns the compiled-in tier-to-model map.
	DefaultModels() map[model.Tier]string
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}

// ResolveModel picks the model for a provider/tier pair: a registry override
// wins, otherwise the provider's compiled-in default for the tier.
func ResolveModel(registry *model.Registry, p Provider, tier model.Tier) string {
	if !tier.IsValid() {
		tier = model.TierBalanced
	}
	if override := registry.ModelOverride(p.Name(), tier); override != "" {
		return override
	}
	return p.DefaultModels()[tier]
}
