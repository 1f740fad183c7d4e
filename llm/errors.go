package llm

import (
	"errors"
	"fmt"
	"strings"
)

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Attempt records one failed provider attempt during a dispatch sweep.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// AllProvidersError is returned when every provider in the sweep failed.
// It names each attempt so callers can see the full failure picture.
type AllProvidersError struct {
	Attempts []Attempt
}

func (e *AllProvidersError) Error() string {
	if len(e.Attempts) == 0 {
		return "no providers available"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s(%s): %v", a.Provider, a.Model, a.Err)
	}
	return fmt.Sprintf("all providers failed: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the last attempt's error for errors.Is/As chains.
func (e *AllProvidersError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
