// Package scraper performs the single-URL fetches the enrichment engine is
// built on: full page fetches for extraction and header-only probes for
// content-type confirmation. Transport failures are reported as values on
// the Result, never as errors, so a bad candidate page can never abort a
// row.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/ferret/internal/bypass"
	"github.com/FranksOps/ferret/internal/fingerprint"
	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/pkg/httpclient"
	"github.com/FranksOps/ferret/pkg/proxy"
	"github.com/FranksOps/ferret/pkg/ratelimit"
	"github.com/FranksOps/ferret/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// probeBodyLimit caps how much of a probed response body is drained before
// closing; only the headers matter for a probe.
const probeBodyLimit = 512

// Result captures the outcome of a single fetch or probe.
type Result struct {
	ID          string
	URL         string
	Method      string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string // lowercased Content-Type header
	Duration    time.Duration
	Challenged  bool   // a bot-protection challenge answered instead of content
	ChallengeBy string // e.g. "Cloudflare", "Akamai", "DataDome", "PerimeterX"
	CreatedAt   time.Time
	Error       string // non-empty if the fetch failed before an HTTP response
}

// OK reports whether the response is usable content: no transport error, a
// non-error HTTP status, and no bot challenge.
func (r *Result) OK() bool {
	return r.Error == "" && r.StatusCode > 0 && r.StatusCode < 400 && !r.Challenged
}

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
}

// Fetcher performs single URL fetches using the configured transport setup.
type Fetcher struct {
	config    Config
	client    *httpclient.Client
	transport http.RoundTripper
}

// New initializes a Fetcher. Holding a single client across requests keeps
// cookie jars (if configured) alive for the lifetime of the Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	// One transport per fetcher so connections pool. Per-request proxy
	// rotation goes through the request context: Transport.Proxy must not
	// be mutated concurrently, but a proxy func reading the context is safe.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		// Keep local test traffic away from any system proxy.
		if req.URL.Hostname() == "127.0.0.1" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{
		config:    cfg,
		client:    client,
		transport: transport,
	}, nil
}

// Fetch executes a GET request to the target URL and reads the full body.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Result {
	return f.do(ctx, targetURL, false)
}

// Probe executes a GET request but discards the body after the headers are
// available. Used for cheap content-type confirmation of asset candidates.
func (f *Fetcher) Probe(ctx context.Context, targetURL string) *Result {
	return f.do(ctx, targetURL, true)
}

func (f *Fetcher) do(ctx context.Context, targetURL string, headersOnly bool) *Result {
	start := time.Now()

	result := &Result{
		ID:        uuid.New().String(),
		URL:       targetURL,
		Method:    http.MethodGet,
		CreatedAt: start.UTC(),
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			result.Error = fmt.Sprintf("rate limiter failed: %v", err)
			return result
		}
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	// Dynamic proxy via context
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
		}
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Duration = time.Since(start)
		metrics.RecordFetch(hostOf(targetURL), "error", result.Duration)
		return result
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	if headersOnly {
		// Drain a little so the connection can be reused, then drop the rest.
		_, _ = io.CopyN(io.Discard, resp.Body, probeBodyLimit)
	} else {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			result.Error = fmt.Sprintf("failed to read body: %v", err)
		}
		result.Body = body
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.ContentType = strings.ToLower(resp.Header.Get("Content-Type"))
	result.Duration = time.Since(start)

	result.Challenged, result.ChallengeBy = bypass.Analyze(
		result.StatusCode, result.Headers, result.Body, bypass.DefaultDetectors())

	domain := hostOf(targetURL)
	metrics.RecordFetch(domain, fmt.Sprintf("%d", resp.StatusCode), result.Duration)
	if result.Challenged {
		metrics.ChallengesTotal.WithLabelValues(domain, result.ChallengeBy).Inc()
	}

	return result
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Hostname()
	}
	return ""
}
