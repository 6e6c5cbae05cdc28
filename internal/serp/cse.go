package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/pkg/httpclient"
	"github.com/FranksOps/ferret/pkg/ratelimit"
)

const defaultCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

// CSEConfig configures the Google Custom Search JSON API client.
type CSEConfig struct {
	Key      string
	CX       string
	Endpoint string // overridable for tests
	Timeout  time.Duration
	// Limiter paces calls against the shared daily quota. Required in
	// production; a nil limiter means no pacing (tests only).
	Limiter *ratelimit.Limiter
}

// CSE implements Provider on top of the Google Custom Search JSON API.
type CSE struct {
	cfg    CSEConfig
	client *httpclient.Client
}

// NewCSE validates credentials and builds the API client. Missing
// credentials are a startup error, never a per-row condition.
func NewCSE(cfg CSEConfig) (*CSE, error) {
	if cfg.Key == "" || cfg.CX == "" {
		return nil, fmt.Errorf("cse: missing API key or engine id")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultCSEEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout, MaxRedirects: 5})
	if err != nil {
		return nil, fmt.Errorf("cse: create client: %w", err)
	}

	return &CSE{cfg: cfg, client: client}, nil
}

// Name implements Provider.
func (c *CSE) Name() string { return "cse" }

// Search implements Provider. An HTTP 429 from the API is surfaced as
// ErrQuotaExceeded; all other failures are plain errors the caller may
// degrade to an empty result list.
func (c *CSE) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 8
	}

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("cse: wait for rate limiter: %w", err)
		}
	}

	params := url.Values{}
	params.Set("key", c.cfg.Key)
	params.Set("cx", c.cfg.CX)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("cse: create request: %w", err)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		metrics.RecordSearch(c.Name(), "error")
		return nil, fmt.Errorf("cse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordSearch(c.Name(), "quota")
		return nil, fmt.Errorf("cse: 429 from search api: %w", ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordSearch(c.Name(), "error")
		return nil, fmt.Errorf("cse: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			Link  string `json:"link"`
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
		metrics.RecordSearch(c.Name(), "error")
		return nil, fmt.Errorf("cse: decode response: %w", err)
	}

	results := make([]Result, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{URL: item.Link, Title: item.Title})
		if len(results) >= limit {
			break
		}
	}

	metrics.RecordSearch(c.Name(), "ok")
	return results, nil
}
