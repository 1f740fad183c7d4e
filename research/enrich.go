package research

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
)

// maxReferenceChars bounds how much of one reference feeds the prompt.
const maxReferenceChars = 8000

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// ReferenceDoc is one enriched reference page.
type ReferenceDoc struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// Enricher turns reference URLs into markdown research context:
// fetch, readability extraction of the main content, then HTML to
// markdown conversion.
type Enricher struct {
	fetcher   *Fetcher
	converter *md.Converter
	logger    *slog.Logger
}

// NewEnricher creates an enricher over the given fetcher.
func NewEnricher(fetcher *Fetcher, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Enricher{
		fetcher:   fetcher,
		converter: converter,
		logger:    logger,
	}
}

// Enrich fetches and converts each reference URL. Failures are logged
// and skipped; research proceeds with whatever was retrievable.
func (e *Enricher) Enrich(ctx context.Context, urls []string) []ReferenceDoc {
	var docs []ReferenceDoc
	for _, rawURL := range urls {
		doc, err := e.enrichOne(ctx, rawURL)
		if err != nil {
			e.logger.Warn("reference skipped", "url", rawURL, "error", err)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs
}

func (e *Enricher) enrichOne(ctx context.Context, rawURL string) (*ReferenceDoc, error) {
	result, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(result.Body), parsed)
	if err != nil {
		return nil, fmt.Errorf("readability extraction: %w", err)
	}

	markdown, err := e.converter.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("markdown conversion: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n"))
	if len(markdown) > maxReferenceChars {
		markdown = markdown[:maxReferenceChars]
	}
	if markdown == "" {
		return nil, fmt.Errorf("no extractable content")
	}

	return &ReferenceDoc{
		URL:      rawURL,
		Title:    article.Title,
		Markdown: markdown,
	}, nil
}

// FoldReferences renders enriched docs into one prompt-ready block.
func FoldReferences(docs []ReferenceDoc) string {
	if len(docs) == 0 {
		return "No reference material available."
	}

	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		title := doc.Title
		if title == "" {
			title = doc.URL
		}
		fmt.Fprintf(&sb, "### %s\nSource: %s\n\n%s", title, doc.URL, doc.Markdown)
	}
	return sb.String()
}
