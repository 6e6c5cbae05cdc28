package serp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oxffaa/gopher-parse-sitemap"

	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/internal/scraper"
)

// SitemapWalk implements Provider for site-restricted queries only, by
// walking the target domain's sitemap.xml instead of asking a search
// engine. It consumes no search quota, which makes it a useful fallback
// for the brand-preferred pass once the paid backend is exhausted.
type SitemapWalk struct {
	fetcher *scraper.Fetcher
	logger  *slog.Logger

	// cache holds the flattened URL list per domain so repeated queries
	// against the same site cost one sitemap fetch.
	cache map[string][]string
}

// NewSitemapWalk builds the sitemap-walk backend.
func NewSitemapWalk(fetcher *scraper.Fetcher, logger *slog.Logger) (*SitemapWalk, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("sitemap: fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapWalk{fetcher: fetcher, logger: logger, cache: make(map[string][]string)}, nil
}

// Name implements Provider.
func (s *SitemapWalk) Name() string { return "sitemap" }

// Search implements Provider. Only queries of the form "site:<domain>
// <terms>" are answerable; anything else returns an empty result list so
// the orchestrator falls through to its next query variant.
func (s *SitemapWalk) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 8
	}

	domain, terms, ok := splitSiteQuery(query)
	if !ok {
		return nil, nil
	}

	urls, err := s.domainURLs(ctx, domain)
	if err != nil {
		metrics.RecordSearch(s.Name(), "error")
		return nil, fmt.Errorf("sitemap: walk %s: %w", domain, err)
	}

	tokens := matchTokens(terms)
	var results []Result
	for _, u := range urls {
		if !matchesAny(u, tokens) {
			continue
		}
		results = append(results, Result{URL: u})
		if len(results) >= limit {
			break
		}
	}

	metrics.RecordSearch(s.Name(), "ok")
	return results, nil
}

func (s *SitemapWalk) domainURLs(ctx context.Context, domain string) ([]string, error) {
	if urls, ok := s.cache[domain]; ok {
		return urls, nil
	}

	urls, err := s.walk(ctx, "https://"+domain+"/sitemap.xml", true)
	if err != nil {
		return nil, err
	}
	s.cache[domain] = urls
	return urls, nil
}

// walk fetches one sitemap document and flattens it. A sitemap index is
// followed one level deep; indexes nested further are ignored.
func (s *SitemapWalk) walk(ctx context.Context, sitemapURL string, followIndex bool) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL)

	res := s.fetcher.Fetch(ctx, sitemapURL)
	if res.Error != "" {
		return nil, fmt.Errorf("fetch sitemap: %s", res.Error)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("sitemap status %d", res.StatusCode)
	}

	var urls []string
	err := sitemap.Parse(bytes.NewReader(res.Body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})

	if (err != nil || len(urls) == 0) && followIndex {
		var nested []string
		indexErr := sitemap.ParseIndex(bytes.NewReader(res.Body), func(e sitemap.IndexEntry) error {
			nested = append(nested, e.GetLocation())
			return nil
		})
		if err != nil && indexErr != nil {
			return nil, fmt.Errorf("parse as sitemap or index: %w", indexErr)
		}
		if err != nil && len(nested) == 0 {
			return nil, fmt.Errorf("parse as sitemap: %w", err)
		}
		// err == nil with no entries and no index entries is just an empty
		// sitemap.
		for _, nestedURL := range nested {
			nestedURLs, walkErr := s.walk(ctx, nestedURL, false)
			if walkErr != nil {
				s.logger.Warn("skipping nested sitemap", "url", nestedURL, "err", walkErr)
				continue
			}
			urls = append(urls, nestedURLs...)
		}
	}

	return urls, nil
}

// splitSiteQuery parses "site:<domain> <terms>" queries.
func splitSiteQuery(query string) (domain, terms string, ok bool) {
	if !strings.HasPrefix(query, "site:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(query, "site:")
	domain, terms, _ = strings.Cut(rest, " ")
	if domain == "" {
		return "", "", false
	}
	return domain, strings.TrimSpace(terms), true
}

// matchTokens lowercases the query terms and strips surrounding quotes so
// they can be matched against URL paths.
func matchTokens(terms string) []string {
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(terms, `"`, " ")))
	var tokens []string
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func matchesAny(u string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	lower := strings.ToLower(u)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
