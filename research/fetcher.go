// Package research implements the shared research routine: LLM request
// classification, standard drafting with web reference enrichment, the
// recommendations pipeline, and tree-sitter code pattern extraction.
package research

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetch limits.
const (
	DefaultFetchTimeout   = 30 * time.Second
	DefaultMaxContentSize = 5 * 1024 * 1024
	defaultUserAgent      = "standards-research/1.0"
	maxRedirects          = 5
)

// FetchResult is a fetched reference page.
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// Fetcher retrieves reference pages with SSRF protection: HTTPS only,
// private and loopback IPs blocked at validation, DNS resolution, and
// redirect time.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxContentSize int64

	// allowPrivate disables the private-IP guard. Test hook.
	allowPrivate bool
}

// NewFetcher creates a fetcher with the given timeout and body cap.
func NewFetcher(timeout time.Duration, maxContentSize int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxContentSize <= 0 {
		maxContentSize = DefaultMaxContentSize
	}

	f := &Fetcher{
		userAgent:      defaultUserAgent,
		maxContentSize: maxContentSize,
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	// Validate resolved IPs before connecting to defeat DNS rebinding.
	safeDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		if !f.allowPrivate {
			for _, ipAddr := range ips {
				if isPrivateIP(ipAddr.IP) {
					return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
				}
			}
		}

		var lastErr error
		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no resolved addresses for %s", host)
		}
		return nil, lastErr
	}

	f.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           safeDial,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			if err := f.validateURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
	return f
}

// Fetch retrieves the page at urlStr.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResult, error) {
	if err := f.validateURL(urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// validateURL rejects non-HTTPS schemes, localhost variants, local
// domains, and literal private IPs before any request is issued.
func (f *Fetcher) validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if f.allowPrivate {
		return nil
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed, got %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("local host %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("private IP %s is not allowed", ip)
	}
	return nil
}

// isPrivateIP reports whether the IP is loopback, private, link-local,
// CGNAT, or an IPv6 unique-local address, including v6-mapped v4.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		if cgnat.Contains(v4) {
			return true
		}
		return v4.IsLoopback() || v4.IsPrivate() || v4.IsLinkLocalUnicast()
	}
	return v6Unique.Contains(ip)
}

var (
	cgnat    = mustCIDR("100.64.0.0/10")
	v6Unique = mustCIDR("fc00::/7")
)

func mustCIDR(cidr string) *net.IPNet {
	_, block, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return block
}
