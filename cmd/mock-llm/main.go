// Package main implements a mock LLM server for wiring tests.
// It serves OpenAI-compatible /v1/chat/completions responses so the
// standards service can run research workflows offline: point the ollama
// provider at it and every phase gets a deterministic answer.
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures]
//
// Responses are chosen by inspecting the request's system prompt, so the
// classification, research, documentation, validation, and code-analysis
// calls each receive a payload in the shape their caller parses. A fixture
// directory overrides the built-ins per model: the content of
// "<model>.json" is returned verbatim for requests naming that model.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OpenAI-compatible wire types.

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Built-in responses, one per caller shape.

const builtinClassification = `{
  "title": "Wrap errors with context",
  "category": "error-handling",
  "language": "go",
  "complexity": "medium",
  "priority": "high"
}`

const builtinDraft = `{
  "name": "Wrap errors with context",
  "description": "Wrap returned errors with fmt.Errorf and %w so failures carry their call path.",
  "severity": "high",
  "examples": [
    {"title": "Wrap at the call site", "before": "return err", "after": "return fmt.Errorf(\"opening config: %w\", err)", "explanation": "The wrapped form names the failing operation."}
  ]
}`

const builtinValidation = `{
  "score": 85,
  "issues": [],
  "recommendations": ["Add a second example covering errors.Join."]
}`

const builtinAnalysis = `{
  "violations": [
    {"standard": "Wrap errors with context", "line": 12, "message": "error returned without context", "severity": "high", "suggestion": "wrap with fmt.Errorf"}
  ],
  "summary": "One unwrapped error return."
}`

const builtinDocumentation = `# Implementation Guide

Wrap every returned error with the operation that failed. Use fmt.Errorf
with %w so callers can still match with errors.Is and errors.As.`

type server struct {
	fixtures map[string]string // model name -> fixed response content

	calls atomic.Int64

	mu           sync.Mutex
	callsByModel map[string]int64
}

func newServer(fixtures map[string]string) *server {
	return &server{fixtures: fixtures, callsByModel: make(map[string]int64)}
}

// respondFor maps a request to content: fixtures by model name first,
// then built-ins by system prompt.
func (s *server) respondFor(req chatRequest) string {
	if content, ok := s.fixtures[req.Model]; ok {
		return content
	}

	var system string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = strings.ToLower(m.Content)
			break
		}
	}
	switch {
	case strings.Contains(system, "triage assistant"):
		return builtinClassification
	case strings.Contains(system, "standards reviewer"):
		return builtinValidation
	case strings.Contains(system, "compliance review"):
		return builtinAnalysis
	case strings.Contains(system, "technical writer"):
		return builtinDocumentation
	default:
		return builtinDraft
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory of per-model fixture files (optional)")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	fixtures := map[string]string{}
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("loading fixtures from %s: %v", *fixtureDir, err)
		}
		log.Printf("loaded %d fixture model(s) from %s", len(fixtures), *fixtureDir)
	}

	s := newServer(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	s.mu.Lock()
	s.callsByModel[req.Model]++
	s.mu.Unlock()

	content := s.respondFor(req)
	log.Printf("[call %d] model=%s messages=%d response=%d bytes", callNum, req.Model, len(req.Messages), len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int64, len(s.callsByModel))
	for model, n := range s.callsByModel {
		byModel[model] = n
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": byModel,
	})
}

// loadFixtures maps "<model>.json" files in dir to their content.
func loadFixtures(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fixtures[strings.TrimSuffix(name, ".json")] = string(data)
	}
	return fixtures, nil
}
