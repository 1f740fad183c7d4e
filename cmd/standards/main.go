// Package main provides the standards binary entry point.
// Standards is a coding-standards knowledge service: it drafts standards
// with LLM research workflows, projects them into a knowledge graph, keeps
// them in sync with markdown files on disk, and serves them over HTTP to
// developers and coding agents.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	// Register LLM providers via init()
	_ "github.com/c360studio/standards/llm/providers"

	"github.com/spf13/cobra"

	"github.com/c360studio/standards/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "standards"
)

// Exit codes: 1 configuration, 2 graph store, 3 fatal initialization.
const (
	exitConfig = 1
	exitGraph  = 2
	exitInit   = 3
)

// exitError carries a documented exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitInit)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Coding standards knowledge service",
		Long: `Standards researches, stores, and serves coding standards.

It provides:
- LLM-backed research workflows that draft, validate, and deploy standards
- A graph projection of standards, violations, and code patterns over NATS
- Filesystem sync that keeps markdown standards and the graph reconciled
- An HTTP API for developers and coding agents`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&logLevel))
	cmd.AddCommand(syncCmd(&logLevel))
	cmd.AddCommand(parseCmd(&logLevel))
	cmd.AddCommand(researchCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// newLogger builds the process logger. Diagnostics go to stderr as JSON;
// stdout is reserved for command output.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig runs the layered loader and maps failures to the config
// exit code.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, exitf(exitConfig, "loading configuration: %v", err)
	}
	return cfg, nil
}
