// Package llm provides a provider-agnostic LLM layer with health-aware
// fallback across multiple vendors, tier-based model resolution, and
// streaming support.
package llm

import (
	"time"

	"github.com/c360studio/standards/model"
)

// Request defines an LLM completion request.
type Request struct {
	// Prompt is the user-facing prompt text.
	Prompt string `json:"prompt"`

	// SystemPrompt frames the model's role. Optional.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Temperature controls randomness. nil uses the provider default,
	// 0 is deterministic.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// StopSequences terminate generation early when produced.
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Tier selects the model quality/latency trade-off.
	Tier model.Tier `json:"tier,omitempty"`

	// Provider optionally names a preferred provider to try first.
	Provider string `json:"provider,omitempty"`

	// Metadata carries free-form request annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// Content is the generated text. May be empty; an empty completion is
	// still a successful response.
	Content string `json:"content"`

	// Provider identifies which backend produced the response.
	Provider string `json:"provider"`

	// Model is the actual model that was used.
	Model string `json:"model"`

	// Usage contains token consumption metrics.
	Usage Usage `json:"usage"`

	// Metadata carries provider-specific response annotations.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is when the response was received.
	Timestamp time.Time `json:"timestamp"`
}

// StreamChunk is one element of a streaming completion.
// Err is non-nil only on a mid-stream failure, which terminates the stream.
type StreamChunk struct {
	Text string
	Err  error
}
