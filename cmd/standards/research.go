package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/standards/batch"
	"github.com/c360studio/standards/cache"
	"github.com/c360studio/standards/llm"
	"github.com/c360studio/standards/model"
	"github.com/c360studio/standards/prompt"
	"github.com/c360studio/standards/research"
	"github.com/c360studio/standards/standards"
)

func researchCmd(logLevel *string) *cobra.Command {
	var (
		language string
		category string
		refs     []string
	)

	cmd := &cobra.Command{
		Use:   "research <topic> [topic...]",
		Short: "Draft standards for one or more topics",
		Long: `Research drafts a coding standard for each topic using the configured
LLM providers. A single topic runs the full research routine including
reference enrichment; multiple topics run as a batch job with bounded
concurrency and response caching.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(*logLevel, args, language, category, refs)
		},
	}
	cmd.Flags().StringVar(&language, "language", standards.LanguageGeneral, "Language the standards apply to")
	cmd.Flags().StringVar(&category, "category", "", "Standards category (security, performance, style, ...)")
	cmd.Flags().StringSliceVar(&refs, "ref", nil, "Reference URL folded into the research context (repeatable)")
	return cmd
}

func runResearch(logLevel string, topics []string, language, category string, refs []string) error {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := registryFromConfig(cfg.LLM)
	manager := llm.NewManager(registry,
		llm.WithLogger(logger),
		llm.WithTimeout(cfg.LLM.Timeout()),
	)
	prompts := prompt.NewStore()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(topics) == 1 {
		fetcher := research.NewFetcher(cfg.Research.FetchTimeout(), cfg.Research.MaxContentBytes)
		researcher := research.NewResearcher(manager, prompts,
			research.WithLogger(logger),
			research.WithEnricher(research.NewEnricher(fetcher, logger)),
		)

		result, err := researcher.Research(ctx, &research.Request{
			Topic:         topics[0],
			Language:      language,
			Category:      standards.ParseCategory(category),
			ReferenceURLs: refs,
		})
		if err != nil {
			return exitf(exitInit, "research failed: %v", err)
		}
		return enc.Encode(result)
	}

	return runResearchBatch(ctx, logger, cfg.Cache.Capacity, manager, prompts, topics, language, category, enc)
}

// batchDraft is one topic's outcome in a batch research run. Draft holds
// the raw JSON object the model produced, when one could be extracted.
type batchDraft struct {
	Topic  string          `json:"topic"`
	Status string          `json:"status"`
	Draft  json.RawMessage `json:"draft,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func runResearchBatch(ctx context.Context, logger *slog.Logger, cacheCapacity int,
	manager *llm.Manager, prompts *prompt.Store, topics []string, language, category string,
	enc *json.Encoder,
) error {
	cat := standards.ParseCategory(category)

	requests := make([]*llm.Request, 0, len(topics))
	for _, topic := range topics {
		rendered, system, err := prompts.Render(prompt.TemplateStandardsResearch, map[string]string{
			"topic":      topic,
			"language":   strings.ToLower(strings.TrimSpace(language)),
			"category":   cat.String(),
			"references": "",
		})
		if err != nil {
			return exitf(exitInit, "rendering research prompt: %v", err)
		}
		requests = append(requests, &llm.Request{
			Prompt:       rendered,
			SystemPrompt: system,
			Tier:         model.TierAdvanced,
		})
	}

	dispatcher := batch.NewDispatcher(manager,
		batch.WithLogger(logger),
		batch.WithCache(cache.NewMemory(cacheCapacity)),
	)
	dispatcher.OnProgress(func(ev batch.Event) {
		logger.Info("batch progress",
			"job_id", ev.JobID,
			"phase", ev.Phase,
			"progress", ev.Progress,
			"completed", ev.Completed,
			"failed", ev.Failed,
		)
	})

	job, err := dispatcher.ProcessBatch(ctx, "", requests, nil)
	if err != nil {
		return exitf(exitInit, "batch research failed: %v", err)
	}

	out := make([]batchDraft, 0, len(job.Items))
	for i, item := range job.Items {
		d := batchDraft{Topic: topics[i], Status: string(item.Status), Error: item.Error}
		if item.Response != nil {
			if raw := llm.ExtractJSON(item.Response.Content); raw != "" {
				d.Draft = json.RawMessage(raw)
			}
		}
		out = append(out, d)
	}
	return enc.Encode(out)
}
