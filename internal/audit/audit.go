// Package audit defines the per-row enrichment trail. Every processed
// catalog row produces exactly one record describing what the engine
// decided and where the assets came from, persisted through a pluggable
// backend.
package audit

import (
	"context"
	"time"
)

// Record is the audit trail entry for one catalog row in one run.
type Record struct {
	ID            string
	RunID         string
	RowIndex      int
	ArticleCode   string
	SupplierRef   string
	ProviderRaw   string
	BrandDetected string
	// ChosenHost is the host of the page the assets came from, empty if
	// nothing was found.
	ChosenHost string
	// SearchPass names which pass produced the result: brand, open,
	// fallback, or empty when no search ran.
	SearchPass string
	// SourcePage is the candidate page URL the assets were extracted from.
	SourcePage string
	FoundImage string
	FoundPDF   string
	Status     string
	CreatedAt  time.Time
}

// Filter selects records when querying a backend.
type Filter struct {
	RunID  string
	Status string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend persists and queries audit records.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
