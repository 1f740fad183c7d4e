// Package providers implements LLM provider adapters.
package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
)

// AnthropicProvider implements the Anthropic messages API.
type AnthropicProvider struct{}

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

func init() {
	llm.RegisterProvider(&AnthropicProvider{})
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// BuildURL constructs the Anthropic messages endpoint.
func (a *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/v1/messages") {
		return baseURL
	}
	return baseURL + "/v1/messages"
}

// SetHeaders adds Anthropic-specific authentication headers.
func (a *AnthropicProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

// DefaultModels returns the compiled-in tier map.
func (a *AnthropicProvider) DefaultModels() map[model.Tier]string {
	return map[model.Tier]string{
		model.TierFast:     "claude-3-5-haiku-latest",
		model.TierBalanced: "claude-sonnet-4-5",
		model.TierAdvanced: "claude-opus-4-1",
	}
}

// anthropicRequest is the Anthropic API request format.
type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the Anthropic API request body.
func (a *AnthropicProvider) BuildRequestBody(modelName string, req *llm.Request, stream bool) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:     modelName,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		System:        req.SystemPrompt,
		Temperature:   req.Temperature, // nil = use default, 0 = deterministic
		StopSequences: req.StopSequences,
		Stream:        stream,
	}
	return json.Marshal(body)
}

// anthropicResponse is the Anthropic API response format.
type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content from an Anthropic response.
func (a *AnthropicProvider) ParseResponse(body []byte, modelName string) (*llm.Response, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("parse anthropic response: %w", err))
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = modelName
	}

	return &llm.Response{
		Content:  content.String(),
		Provider: a.Name(),
		Model:    respModel,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Metadata: map[string]string{"stop_reason": resp.StopReason},
	}, nil
}

// anthropicStreamEvent is one SSE data payload of a streaming response.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseStreamLine extracts text from one SSE line of a streaming response.
func (a *AnthropicProvider) ParseStreamLine(line []byte) (string, bool, error) {
	data, ok := sseData(line)
	if !ok {
		return "", false, nil
	}

	var event anthropicStreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// Unknown event payloads are skipped, not fatal.
		return "", false, nil
	}

	switch event.Type {
	case "content_block_delta":
		return event.Delta.Text, false, nil
	case "message_stop":
		return "", true, nil
	case "error":
		msg := "stream error"
		if event.Error != nil {
			msg = event.Error.Message
		}
		return "", false, llm.NewTransientError(fmt.Errorf("anthropic stream: %s", msg))
	default:
		return "", false, nil
	}
}

// sseData strips the SSE "data: " prefix, returning false for other lines.
func sseData(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimSpace(line[len("data:"):]), true
}
