package main

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithSystem(system string) chatRequest {
	return chatRequest{
		Model: "qwen2.5-coder:7b",
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: "input"},
		},
	}
}

func TestRespondFor_RoutesBySystemPrompt(t *testing.T) {
	s := newServer(nil)

	tests := []struct {
		name   string
		system string
		want   string
	}{
		{"classification", "You are a technical triage assistant for an engineering standards service.", builtinClassification},
		{"validation", "You are a standards reviewer. Score the supplied coding standard.", builtinValidation},
		{"analysis", "You are a senior software engineer performing a standards compliance review.", builtinAnalysis},
		{"documentation", "You are a technical writer who documents engineering standards.", builtinDocumentation},
		{"draft fallback", "You are a principal engineer who writes engineering standards.", builtinDraft},
		{"no system prompt", "", builtinDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.respondFor(requestWithSystem(tt.system)))
		})
	}
}

func TestRespondFor_FixtureOverridesBuiltins(t *testing.T) {
	s := newServer(map[string]string{"qwen2.5-coder:7b": `{"custom": true}`})

	got := s.respondFor(requestWithSystem("You are a standards reviewer."))
	assert.Equal(t, `{"custom": true}`, got)
}

func TestHandleChatCompletions(t *testing.T) {
	s := newServer(nil)

	body := `{"model": "m1", "messages": [{"role": "user", "content": "draft a standard"}]}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleChatCompletions(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "m1", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, builtinDraft, resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestHandleChatCompletions_BadBody(t *testing.T) {
	s := newServer(nil)

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handleChatCompletions(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestHandleStats_CountsCalls(t *testing.T) {
	s := newServer(nil)

	for range 2 {
		body := `{"model": "m1", "messages": []}`
		req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
		s.handleChatCompletions(httptest.NewRecorder(), req)
	}
	body := `{"model": "m2", "messages": []}`
	s.handleChatCompletions(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body)))

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest("GET", "/stats", nil))

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.CallsByModel["m1"])
	assert.Equal(t, int64(1), stats.CallsByModel["m2"])
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m1.json"), []byte(`{"a": 1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"m1": `{"a": 1}`}, fixtures)
}
