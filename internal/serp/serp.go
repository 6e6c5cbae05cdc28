// Package serp abstracts the web-search backends the enrichment engine can
// run against. Backends differ wildly (paid JSON API, scraped public
// results page, sitemap walking) but share one contract: an ordered list of
// result URLs for a query, and a distinct quota signal when the backend
// will not answer any further searches this run.
package serp

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned (possibly wrapped) when the search backend
// signals that no further searches will succeed in the current run. It is
// the only search failure the orchestrator treats as fatal; every other
// failure degrades to an empty result list for that query.
var ErrQuotaExceeded = errors.New("search quota exceeded")

// Result is a single search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Provider abstracts a search engine backend that returns ordered results
// for a query. The limit parameter caps the number of results returned.
// Implementations must pace their own calls: the inter-call delay is a
// correctness requirement against shared quota ceilings, not a courtesy.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	// Name identifies the backend in logs, metrics and audit records.
	Name() string
}
