package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/standards/model"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout bounds a single provider call when the caller's context
// carries no deadline.
const DefaultTimeout = 60 * time.Second

// Manager multiplexes several providers with health-aware fallback.
// Generate and StreamGenerate are safe for concurrent use.
type Manager struct {
	registry   *model.Registry
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithTimeout sets the per-call timeout applied when the caller's context
// has no deadline.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a manager over the given provider registry.
func NewManager(registry *model.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute, // allow time for slow completions
		},
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry for health queries.
func (m *Manager) Registry() *model.Registry {
	return m.registry
}

// attemptOrder builds the provider sweep: the request's preferred provider
// first when registered, then the configured preference order.
func (m *Manager) attemptOrder(req *Request) []string {
	var order []string
	seen := make(map[string]bool)

	if req.Provider != "" && m.registry.Registered(req.Provider) {
		order = append(order, req.Provider)
		seen[req.Provider] = true
	}
	for _, name := range m.registry.Order() {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	return order
}

// Generate sends a completion request, falling back across providers.
// The first success wins; every failure is recorded against its provider's
// health. When the sweep is exhausted the composite error names each attempt.
func (m *Manager) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, NewFatalError(fmt.Errorf("prompt is required"))
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var attempts []Attempt
	for _, name := range m.attemptOrder(req) {
		provider := GetProvider(name)
		if provider == nil {
			m.logger.Debug("No implementation for provider, skipping", "provider", name)
			continue
		}
		if !m.registry.IsProviderAvailable(name) {
			m.logger.Debug("Provider unavailable, skipping", "provider", name)
			continue
		}

		modelName := ResolveModel(m.registry, provider, req.Tier)
		resp, err := m.doRequest(ctx, provider, modelName, req)
		if err == nil {
			m.registry.MarkProviderSuccess(name)
			resp.Provider = name
			return resp, nil
		}

		m.registry.MarkProviderFailure(name, err.Error())
		attempts = append(attempts, Attempt{Provider: name, Model: modelName, Err: err})
		m.logger.Warn("Provider failed, trying fallback",
			"provider", name,
			"model", modelName,
			"error", err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &AllProvidersError{Attempts: attempts}
}

// doRequest executes a single HTTP request against one provider.
func (m *Manager) doRequest(ctx context.Context, provider Provider, modelName string, req *Request) (*Response, error) {
	httpResp, err := m.send(ctx, provider, modelName, req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, modelName)
	if err != nil {
		return nil, err
	}
	resp.Timestamp = time.Now()
	return resp, nil
}

// send builds and issues the provider HTTP request.
func (m *Manager) send(ctx context.Context, provider Provider, modelName string, req *Request, stream bool) (*http.Response, error) {
	baseURL := ""
	if cfg := m.registry.Config(provider.Name()); cfg != nil {
		baseURL = cfg.URL
	}
	url := provider.BuildURL(baseURL)

	body, err := provider.BuildRequestBody(modelName, req, stream)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	m.logger.Debug("Sending LLM request",
		"provider", provider.Name(),
		"model", modelName,
		"url", url,
		"stream", stream)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient.
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	return httpResp, nil
}

// StreamGenerate streams a completion. Fallback applies only until the first
// chunk arrives; after that the manager is committed to the provider and a
// mid-stream error terminates the sequence without retry.
func (m *Manager) StreamGenerate(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	if req.Prompt == "" {
		return nil, NewFatalError(fmt.Errorf("prompt is required"))
	}

	var attempts []Attempt
	for _, name := range m.attemptOrder(req) {
		provider := GetProvider(name)
		if provider == nil {
			continue
		}
		if !m.registry.IsProviderAvailable(name) {
			continue
		}

		modelName := ResolveModel(m.registry, provider, req.Tier)
		httpResp, err := m.send(ctx, provider, modelName, req, true)
		if err == nil && httpResp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
			httpResp.Body.Close()
			err = classifyHTTPError(httpResp.StatusCode, respBody)
		}
		if err != nil {
			m.registry.MarkProviderFailure(name, err.Error())
			attempts = append(attempts, Attempt{Provider: name, Model: modelName, Err: err})
			continue
		}

		m.registry.MarkProviderSuccess(name)
		out := make(chan StreamChunk)
		go m.pump(ctx, provider, httpResp.Body, out)
		return out, nil
	}

	return nil, &AllProvidersError{Attempts: attempts}
}

// pump reads the committed provider's stream and forwards chunks.
func (m *Manager) pump(ctx context.Context, provider Provider, body io.ReadCloser, out chan<- StreamChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		text, done, err := provider.ParseStreamLine(scanner.Bytes())
		if err != nil {
			m.emit(ctx, out, StreamChunk{Err: err})
			return
		}
		if text != "" && !m.emit(ctx, out, StreamChunk{Text: text}) {
			return
		}
		if done {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		m.emit(ctx, out, StreamChunk{Err: NewTransientError(fmt.Errorf("stream read: %w", err))})
	}
}

// emit sends a chunk unless the consumer has gone away.
func (m *Manager) emit(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewFatalError(err)
	case statusCode == http.StatusBadRequest || statusCode == http.StatusNotFound:
		return NewFatalError(err)
	default:
		return NewTransientError(err)
	}
}
