package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/config"
	"github.com/c360studio/standards/graph"
	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/parser"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/server"
	"github.com/c360studio/standards/syncer"
	"github.com/c360studio/standards/workflow"
)

func serveCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the standards HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*logLevel)
		},
	}
}

func runServe(logLevel string) error {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
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

	responseCache, closeCache, err := buildCache(cfg, logger)
	if err != nil {
		return exitf(exitInit, "initializing cache: %v", err)
	}
	defer closeCache()

	registry := registryFromConfig(cfg.LLM)
	manager := llm.NewManager(registry,
		llm.WithLogger(logger),
		llm.WithTimeout(cfg.LLM.Timeout()),
	)

	prompts := prompt.NewStore()
	fetcher := research.NewFetcher(cfg.Research.FetchTimeout(), cfg.Research.MaxContentBytes)
	researcher := research.NewResearcher(manager, prompts,
		research.WithLogger(logger),
		research.WithEnricher(research.NewEnricher(fetcher, logger)),
	)

	flow := workflow.NewOrchestrator(researcher, manager, prompts,
		workflow.WithLogger(logger),
		workflow.WithGraph(store),
		workflow.WithCache(responseCache),
		workflow.WithOutputDir(cfg.Workflow.OutputDir),
		workflow.WithPatternRecording(research.NewPatternExtractor(logger), store),
	)

	serverOpts := []server.ServerOption{
		server.WithLogger(logger),
		server.WithWorkflow(flow),
		server.WithProbe("llm", func() bool {
			for _, name := range registry.Order() {
				if registry.IsProviderAvailable(name) {
					return true
				}
			}
			return false
		}),
	}

	if cfg.Sync.Root != "" {
		syn := syncer.New(cfg.Sync.Root, store, parser.New(logger),
			syncer.WithLogger(logger),
			syncer.WithExcludes(cfg.Sync.Excludes),
		)
		serverOpts = append(serverOpts, server.WithSync(syn))

		if cfg.Sync.Interval() > 0 {
			scheduled := syncer.NewScheduled(syn)
			scheduled.Start(cfg.Sync.Interval())
			defer scheduled.Stop()
		}
		if cfg.Sync.Watch {
			go func() {
				if err := syn.Watch(ctx); err != nil {
					logger.Warn("filesystem watch stopped", "error", err)
				}
			}()
		}
	}

	srv := server.NewServer(server.Config{
		Addr:              cfg.Server.Addr,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		EndpointLimits:    cfg.Server.EndpointLimits,
		SlowThreshold:     cfg.Server.SlowThreshold(),
		Version:           Version,
		Auth: server.AuthConfig{
			JWTSecret:    config.JWTSecret(),
			APIKeys:      config.APIKeys(),
			APIKeyHeader: cfg.Server.APIKeyHeader,
			TokenTTL:     cfg.Server.TokenTTL(),
		},
	}, store, researcher, manager, serverOpts...)

	logger.Info("standards service starting",
		"version", Version,
		"addr", cfg.Server.Addr,
		"providers", registry.Order(),
		"sync_root", cfg.Sync.Root,
	)

	if err := srv.Run(ctx); err != nil {
		return exitf(exitInit, "server: %v", err)
	}

	// Let in-flight workflows reach a terminal state before teardown.
	flow.Wait()
	logger.Info("standards service stopped")
	return nil
}

// buildCache constructs the configured response cache backend.
func buildCache(cfg *config.Config, logger *slog.Logger) (cache.Cache, func(), error) {
	if cfg.Cache.Backend == "nats" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("standards-cache"))
		if err != nil {
			return nil, nil, err
		}
		kv, err := cache.NewNATSKV(nc, "standards", logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return kv, nc.Close, nil
	}
	return cache.NewMemory(cfg.Cache.Capacity), func() {}, nil
}

// registryFromConfig maps the YAML provider layout onto the model
// registry. An empty provider table falls back to the compiled-in
// defaults for the configured order.
func registryFromConfig(cfg config.LLMConfig) *model.Registry {
	providers := make(map[string]*model.ProviderConfig, len(cfg.Order))
	for _, name := range cfg.Order {
		providers[name] = &model.ProviderConfig{}
	}
	for name, pc := range cfg.Providers {
		models := make(map[model.Tier]string, len(pc.Models))
		for tier, m := range pc.Models {
			models[model.Tier(tier)] = m
		}
		providers[name] = &model.ProviderConfig{
			URL:       pc.URL,
			Models:    models,
			MaxTokens: pc.MaxTokens,
		}
	}
	return model.NewRegistry(cfg.Order, providers)
}
