package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c360studio/standards/parser"
)

func parseCmd(logLevel *string) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a markdown standards file and print the drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(*logLevel, args[0], language)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language the standards apply to (default: parent directory name)")
	return cmd
}

func runParse(logLevel, path, language string) error {
	logger := newLogger(logLevel)

	content, err := os.ReadFile(path)
	if err != nil {
		return exitf(exitInit, "reading %s: %v", path, err)
	}

	// Mirror the sync engine's layout convention: the parent directory
	// names the language when no flag is given.
	if language == "" {
		if abs, err := filepath.Abs(path); err == nil {
			language = filepath.Base(filepath.Dir(abs))
		}
	}

	drafts := parser.New(logger).Parse(content, language)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(drafts)
}
