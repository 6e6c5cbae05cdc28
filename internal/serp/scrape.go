package serp

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/internal/scraper"
)

const defaultScrapeEndpoint = "https://html.duckduckgo.com/html/"

// ScrapeConfig configures the HTML-scrape search backend.
type ScrapeConfig struct {
	// Endpoint is the public results page queried with ?q=. Defaults to
	// the DuckDuckGo html endpoint, whose markup has been stable for years.
	Endpoint string
	Fetcher  *scraper.Fetcher
}

// Scrape implements Provider by parsing a public search results page.
// The fetcher's fingerprint profile and UA rotation keep the requests
// looking like a browser; its limiter provides the mandatory pacing.
type Scrape struct {
	endpoint string
	fetcher  *scraper.Fetcher
}

// NewScrape builds the HTML-scrape backend.
func NewScrape(cfg ScrapeConfig) (*Scrape, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("scrape: fetcher is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultScrapeEndpoint
	}
	return &Scrape{endpoint: cfg.Endpoint, fetcher: cfg.Fetcher}, nil
}

// Name implements Provider.
func (s *Scrape) Name() string { return "scrape" }

// Search implements Provider. A 429 response or a bot-protection challenge
// is surfaced as ErrQuotaExceeded: either way this backend will not answer
// further searches this run.
func (s *Scrape) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 8
	}

	target := s.endpoint + "?q=" + url.QueryEscape(query)
	res := s.fetcher.Fetch(ctx, target)

	if res.Error != "" {
		metrics.RecordSearch(s.Name(), "error")
		return nil, fmt.Errorf("scrape: fetch results page: %s", res.Error)
	}
	if res.StatusCode == 429 {
		metrics.RecordSearch(s.Name(), "quota")
		return nil, fmt.Errorf("scrape: 429 from results page: %w", ErrQuotaExceeded)
	}
	if res.Challenged {
		metrics.RecordSearch(s.Name(), "quota")
		return nil, fmt.Errorf("scrape: challenged by %s: %w", res.ChallengeBy, ErrQuotaExceeded)
	}
	if res.StatusCode >= 400 {
		metrics.RecordSearch(s.Name(), "error")
		return nil, fmt.Errorf("scrape: unexpected status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		metrics.RecordSearch(s.Name(), "error")
		return nil, fmt.Errorf("scrape: parse results page: %w", err)
	}

	var results []Result
	doc.Find("a.result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		link := resolveRedirect(href)
		if link == "" {
			return true
		}
		results = append(results, Result{URL: link, Title: strings.TrimSpace(sel.Text())})
		return len(results) < limit
	})

	metrics.RecordSearch(s.Name(), "ok")
	return results, nil
}

// resolveRedirect unwraps the engine's /l/?uddg=<target> redirect links and
// drops anything that is not an absolute http(s) URL.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if tu, err := url.Parse(target); err == nil && (tu.Scheme == "http" || tu.Scheme == "https") {
			return tu.String()
		}
		return ""
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.String()
	}
	return ""
}
