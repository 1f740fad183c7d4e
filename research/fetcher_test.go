package research

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	f := NewFetcher(time.Second, 1024)

	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/docs", true},
		{"http://example.com/docs", false},
		{"ftp://example.com", false},
		{"https://localhost/admin", false},
		{"https://service.local/x", false},
		{"https://db.internal/x", false},
		{"https://127.0.0.1/x", false},
		{"https://192.168.1.10/x", false},
		{"https://10.0.0.5/x", false},
		{"https://[::1]/x", false},
	}
	for _, tt := range tests {
		err := f.validateURL(tt.url)
		if tt.ok {
			assert.NoError(t, err, tt.url)
		} else {
			assert.Error(t, err, tt.url)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1",
		"169.254.1.1", "100.64.0.1", "::1", "fc00::1", "fe80::1",
		"::ffff:192.168.1.1", "0.0.0.0",
	}
	for _, s := range private {
		assert.True(t, isPrivateIP(net.ParseIP(s)), s)
	}

	public := []string{"8.8.8.8", "1.1.1.1", "2606:4700::1111"}
	for _, s := range public {
		assert.False(t, isPrivateIP(net.ParseIP(s)), s)
	}
}

func TestFetch_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 1024)
	f.allowPrivate = true

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content too large")
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 1024)
	f.allowPrivate = true

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 1024*1024)
	f.allowPrivate = true

	result, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.Body), "hello")
	assert.Contains(t, result.ContentType, "text/html")
}

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Effective Error Handling</title></head>
<body>
<article>
<h1>Effective Error Handling</h1>
<p>Error handling is the backbone of reliable software. Teams that treat errors
as first-class values produce systems that degrade gracefully instead of
crashing, and their logs explain what went wrong instead of hiding it.</p>
<p>The first rule is to handle errors where you have enough context to decide
what they mean. A low-level helper rarely knows whether a missing file is fatal
or routine; the caller almost always does, so the helper should return the
error instead of logging and swallowing it.</p>
<p>The second rule is to wrap errors with context as they travel up the stack.
Each layer should add the operation it was attempting, so the final message
reads like a story: opening config failed because reading the file failed
because the permission was denied.</p>
<p>Finally, reserve panics for programmer mistakes. If an invariant the code
itself guarantees is broken, crashing loudly during development is the fastest
path to a fix. User input, network failures, and full disks are not invariants;
they are Tuesday.</p>
</article>
</body>
</html>`

func TestEnrich_ConvertsArticleToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 1024*1024)
	f.allowPrivate = true
	e := NewEnricher(f, slog.New(slog.NewTextHandler(io.Discard, nil)))

	docs := e.Enrich(context.Background(), []string{srv.URL})
	require.Len(t, docs, 1)

	assert.Equal(t, srv.URL, docs[0].URL)
	assert.Contains(t, docs[0].Markdown, "first rule")
	assert.NotContains(t, docs[0].Markdown, "<p>")
}

func TestEnrich_SkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 1024*1024)
	f.allowPrivate = true
	e := NewEnricher(f, slog.New(slog.NewTextHandler(io.Discard, nil)))

	docs := e.Enrich(context.Background(), []string{srv.URL, "https://localhost/blocked"})
	assert.Empty(t, docs)
}

func TestFoldReferences(t *testing.T) {
	assert.Equal(t, "No reference material available.", FoldReferences(nil))

	folded := FoldReferences([]ReferenceDoc{
		{URL: "https://a.example", Title: "A", Markdown: "alpha"},
		{URL: "https://b.example", Markdown: "beta"},
	})
	assert.Contains(t, folded, "### A")
	assert.Contains(t, folded, "Source: https://a.example")
	assert.Contains(t, folded, "### https://b.example")
	assert.Contains(t, folded, "---")
}
