// Package server exposes the standards service over HTTP: a stdlib mux
// wrapped by logging, rate-limit, and auth middleware, with JSON
// request/response bodies throughout.
package server

import (
	"encoding/json"
	"net/http"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	Path      string `json:"path"`
	RequestID string `json:"request_id,omitempty"`
}

// rateLimitBody is the 429 response shape.
type rateLimitBody struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the standard error shape.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, errorBody{
		Error:     code,
		Detail:    detail,
		Path:      r.URL.Path,
		RequestID: requestIDFrom(r.Context()),
	})
}

// decodeBody reads a JSON request body into v, enforcing the size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}
