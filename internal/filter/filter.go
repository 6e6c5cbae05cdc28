// Package filter ranks raw search results into an ordered candidate list.
// Ranking runs two sweeps over the same input: a brand-preferred sweep that
// keeps only hosts belonging to the detected brand, then an open sweep
// that admits everything else. Marketplace and social hosts are rejected
// in both sweeps.
package filter

import (
	"net/url"
	"strings"

	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/serp"
)

// Sweep labels which pass admitted a candidate.
type Sweep string

const (
	SweepBrand Sweep = "brand"
	SweepOpen  Sweep = "open"
)

// Candidate is one admitted page URL, in visit order.
type Candidate struct {
	URL   string
	Host  string
	Sweep Sweep
}

// DefaultBlacklist lists host fragments that never point at official
// manufacturer assets: marketplaces, social networks, document mirrors.
func DefaultBlacklist() []string {
	return []string{
		"amazon.", "ebay.", "aliexpress.", "alibaba.",
		"leroymerlin.", "manomano.", "mercadolibre.",
		"pinterest.", "facebook.", "instagram.", "youtube.",
		"tiktok.", "linkedin.", "x.com", "reddit.",
		"issuu.", "scribd.", "wikipedia.",
	}
}

// Config configures candidate ranking.
type Config struct {
	// Blacklist holds lowercase host fragments to reject. Empty means
	// DefaultBlacklist.
	Blacklist []string
	// Resolver supplies the domain hints for the brand-preferred sweep.
	Resolver *brand.Resolver
}

// Filter ranks search results into candidates.
type Filter struct {
	blacklist []string
	resolver  *brand.Resolver
}

// New builds a Filter.
func New(cfg Config) *Filter {
	bl := cfg.Blacklist
	if len(bl) == 0 {
		bl = DefaultBlacklist()
	}
	return &Filter{blacklist: bl, resolver: cfg.Resolver}
}

// Rank orders results brand-first. Results whose host belongs to the brand
// come first in their original order, then the remaining admissible
// results. Each URL appears at most once; the sweep that admitted it first
// wins. An empty or unknown brand skips the brand-preferred sweep
// entirely.
func (f *Filter) Rank(results []serp.Result, brandName string) []Candidate {
	brandNorm := strings.ToLower(strings.TrimSpace(brandName))
	var hints []string
	if f.resolver != nil && brandNorm != "" {
		hints = f.resolver.Hints(brandName)
	}

	seen := make(map[string]bool)
	var out []Candidate

	if brandNorm != "" {
		for _, r := range results {
			host, ok := f.admissibleHost(r.URL)
			if !ok || seen[r.URL] || !isBrandHost(host, brandNorm, hints) {
				continue
			}
			seen[r.URL] = true
			out = append(out, Candidate{URL: r.URL, Host: host, Sweep: SweepBrand})
		}
	}

	for _, r := range results {
		host, ok := f.admissibleHost(r.URL)
		if !ok || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, Candidate{URL: r.URL, Host: host, Sweep: SweepOpen})
	}

	return out
}

// admissibleHost extracts the lowercase host and applies the blacklist.
func (f *Filter) admissibleHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	for _, bad := range f.blacklist {
		if strings.Contains(host, bad) {
			return "", false
		}
	}
	return host, true
}

// isBrandHost reports whether host belongs to the brand: the brand name
// appears in the host itself, or the host equals or is a subdomain of one
// of the brand's trusted domains. A trusted domain appearing elsewhere in
// the host does not count, so lookalike registrations stay in the open
// sweep.
func isBrandHost(host, brandNorm string, hints []string) bool {
	if strings.Contains(host, brandNorm) {
		return true
	}
	for _, h := range hints {
		d := strings.ToLower(strings.TrimSpace(h))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
