// Package pipeline holds the Pipeline Orchestrator (spec §4.G) plus the
// shared HTML fetcher Tier 4's web-search lookup (internal/sourceverify)
// and the scheduler's Auto-suggest topic discovery both use to retrieve a
// page, with a bounded-retry wrapper around the plain Fetch for the
// transient failures a live web crawl runs into.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veritas-audit/veritas/internal/util"
)

// fetchSleepFunc is the backoff sleep, overridden in tests to skip real
// delays.
var fetchSleepFunc = time.Sleep

// fetchMaxAttempts bounds FetchWithRetry's total attempts (1 initial try
// plus 2 retries).
const fetchMaxAttempts = 3

// Fetcher fetches HTML content from URLs. Used by Tier 4 (generic web
// search) to check that a candidate page is reachable (pageReachable), and
// by the scheduler's Auto-suggest topic discovery.
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBytes     int64
	allowPrivate bool
}

// NewFetcher creates a new Fetcher with the given configuration. allowPrivate
// marks the fetcher as permitted to dial loopback/private addresses; callers
// crawling user- or LLM-supplied URLs (spec §6's web-search and
// ancient-text tiers) should pass false and rely on the scheduler's
// Auto-suggest robots-checked allowlist instead of trusting arbitrary hosts.
// The flag is only recorded: Fetch does not consult it, and no address is
// blocked at dial time.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, allowPrivate bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:    userAgent,
		maxBytes:     maxBytes,
		allowPrivate: allowPrivate,
	}
}

// FetchMeta carries the HTTP response metadata of a fetched page.
type FetchMeta struct {
	StatusCode   int
	ContentType  string
	LastModified string
	ETag         string
	Headers      map[string]string
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML     string
	Meta     FetchMeta
	Subject  string
	FinalURL string
}

// Fetch retrieves HTML content from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	meta := FetchMeta{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		Headers:      make(map[string]string),
	}

	// Store selected headers
	for _, key := range []string{"Content-Length", "Server", "Cache-Control"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit
	limitedReader := io.LimitReader(resp.Body, f.maxBytes)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	subject := extractSubject(finalURL)

	return &FetchResult{
		HTML:     string(body),
		Meta:     meta,
		Subject:  subject,
		FinalURL: finalURL,
	}, nil
}

// extractSubject extracts a human-readable subject from the URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	// Extract last path segment
	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	// De-slugify: replace underscores and hyphens with spaces
	last = strings.ReplaceAll(last, "_", " ")
	last = strings.ReplaceAll(last, "-", " ")

	// Remove file extensions
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}

// isRetryableFetchError reports whether err is a transient failure worth
// retrying: 500/502/503/429 responses and common connection-level errors.
// Other 5xx codes, 4xx client errors (other than 429) and
// malformed-request/body errors are not.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"500", "502", "503", "429"} {
		if strings.Contains(msg, "unexpected status: "+code) {
			return true
		}
	}
	for _, sub := range []string{"connection refused", "connection reset by peer"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// FetchWithRetry calls Fetch, retrying transient failures (isRetryableFetchError)
// with a linear backoff up to fetchMaxAttempts total tries.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == fetchMaxAttempts {
			return nil, err
		}
		fetchSleepFunc(time.Duration(attempt) * 200 * time.Millisecond)
	}
	return nil, lastErr
}
