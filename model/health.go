package model

import (
	"sync"
	"time"
)

// TripThreshold is the consecutive-failure count that marks a provider
// unavailable until an explicit reset.
const TripThreshold = 3

// Health is a snapshot of a provider's availability state.
type Health struct {
	// Available indicates if the provider is currently usable.
	Available bool `json:"available"`

	// ErrorCount is the number of consecutive failures.
	ErrorCount int `json:"error_count"`

	// LastError is the message of the most recent failure.
	LastError string `json:"last_error,omitempty"`

	// LastSuccess is the time of the last successful request.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// LastFailure is the time of the last failed request.
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// health is the mutable record behind a Health snapshot.
type health struct {
	mu    sync.Mutex
	state Health
}

func newHealth() *health {
	return &health{state: Health{Available: true}}
}

func (h *health) markSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.ErrorCount = 0
	h.state.Available = true
	h.state.LastSuccess = time.Now()
}

func (h *health) markFailure(errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.ErrorCount++
	h.state.LastError = errMsg
	h.state.LastFailure = time.Now()
	if h.state.ErrorCount >= TripThreshold {
		h.state.Available = false
	}
}

func (h *health) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Health{Available: true}
}

func (h *health) snapshot() Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
