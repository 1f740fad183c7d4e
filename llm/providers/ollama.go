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

// OllamaProvider implements the OpenAI-compatible API used by Ollama, vLLM,
// and similar local inference servers.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds OpenAI-compatible headers for servers that require a key.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OLLAMA_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// DefaultModels returns the compiled-in tier map.
func (o *OllamaProvider) DefaultModels() map[model.Tier]string {
	return map[model.Tier]string{
		model.TierFast:     "llama3.2",
		model.TierBalanced: "qwen2.5-coder:14b",
		model.TierAdvanced: "qwen2.5-coder:32b",
	}
}

// openAIRequest is the OpenAI-compatible request format.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the OpenAI-compatible request body.
func (o *OllamaProvider) BuildRequestBody(modelName string, req *llm.Request, stream bool) ([]byte, error) {
	var messages []openAIMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: req.Temperature, // nil = use default, 0 = deterministic
		Stop:        req.StopSequences,
		Stream:      stream,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}
	return json.Marshal(body)
}

// openAIResponse is the OpenAI-compatible response format.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content from an OpenAI-compatible response.
func (o *OllamaProvider) ParseResponse(body []byte, modelName string) (*llm.Response, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("parse openai-compatible response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewTransientError(fmt.Errorf("response contains no choices"))
	}

	respModel := resp.Model
	if respModel == "" {
		respModel = modelName
	}

	choice := resp.Choices[0]
	return &llm.Response{
		Content:  choice.Message.Content,
		Provider: o.Name(),
		Model:    respModel,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Metadata: map[string]string{"finish_reason": choice.FinishReason},
	}, nil
}

// openAIStreamChunk is one SSE data payload of a streaming response.
type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ParseStreamLine extracts text from one SSE line of a streaming response.
func (o *OllamaProvider) ParseStreamLine(line []byte) (string, bool, error) {
	data, ok := sseData(line)
	if !ok {
		return "", false, nil
	}
	if bytes.Equal(data, []byte("[DONE]")) {
		return "", true, nil
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", false, nil
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}

	choice := chunk.Choices[0]
	done := choice.FinishReason != nil && *choice.FinishReason != ""
	return choice.Delta.Content, done, nil
}
