package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/parser"
	"github.com/c360studio/standards/syncer"
)

func syncCmd(logLevel *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the standards directory with the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(*logLevel, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Treat every file as modified")
	return cmd
}

func runSync(logLevel string, force bool) error {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	if cfg.Sync.Root == "" {
		return exitf(exitConfig, "sync.root is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := graph.NewClient(graph.Config{
		NATSURL:    cfg.NATS.URL,
		GatewayURL: cfg.Gateway.URL,
	}, graph.WithLogger(logger))
	if err := store.Connect(ctx); err != nil {
		return exitf(exitGraph, "connecting graph store: %v", err)
	}
	defer store.Close()

	syn := syncer.New(cfg.Sync.Root, store, parser.New(logger),
		syncer.WithLogger(logger),
		syncer.WithExcludes(cfg.Sync.Excludes),
	)

	stats, err := syn.SyncAll(ctx, force)
	if err != nil {
		return exitf(exitInit, "sync failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
