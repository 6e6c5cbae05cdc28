// Package enrich orchestrates the per-row enrichment loop: brand
// resolution, query generation, search, candidate ranking and asset
// extraction, with an audit record for every row it touches.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/ferret/internal/audit"
	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/catalog"
	"github.com/FranksOps/ferret/internal/extract"
	"github.com/FranksOps/ferret/internal/filter"
	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/internal/query"
	"github.com/FranksOps/ferret/internal/serp"
)

// Terminal row statuses written to the audit trail.
const (
	StatusExcluded        = "excluded_by_rule"
	StatusSkippedByFilter = "skipped_by_provider_filter"
	StatusAlreadyComplete = "already_complete"
	StatusFilled          = "filled"
	StatusNoMatch         = "no_match"
	StatusQuotaExceeded   = "quota_exceeded"
)

// Search pass labels recorded on filled rows.
const (
	PassBrand    = "brand"
	PassOpen     = "open"
	PassFallback = "fallback"
)

// AssetExtractor resolves assets from a candidate page. Satisfied by
// *extract.Extractor; a narrow interface keeps the orchestrator testable
// without a web server.
type AssetExtractor interface {
	Extract(ctx context.Context, pageURL string, needImage, needPDF bool) (image, pdf extract.Asset)
}

// Config wires an Orchestrator.
type Config struct {
	Provider  serp.Provider
	Resolver  *brand.Resolver
	Filter    *filter.Filter
	Extractor AssetExtractor
	Audit     audit.Backend

	// ProviderContains restricts processing to rows whose provider name
	// contains this text after normalization. Empty processes all rows.
	ProviderContains string
	// Offset is the zero-based row index to start at; Limit caps how many
	// rows are processed, zero meaning all remaining.
	Offset int
	Limit  int
	// PageSize is the number of results requested per search query.
	PageSize int
	// BrandFallback enables a final pass over the remaining known brands'
	// official domains when a row's own passes find nothing.
	BrandFallback bool

	RunID  string
	Logger *slog.Logger
}

// Totals summarizes one run.
type Totals struct {
	Processed       int
	Filled          int
	NoMatch         int
	AlreadyComplete int
	Excluded        int
	SkippedByFilter int
	QuotaExceeded   int
	ImagesFound     int
	PDFsFound       int
}

// Orchestrator runs the enrichment loop over catalog rows.
type Orchestrator struct {
	cfg        Config
	provFilter string // normalized
	logger     *slog.Logger
}

// New validates the wiring and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Provider == nil:
		return nil, fmt.Errorf("enrich: search provider is required")
	case cfg.Resolver == nil:
		return nil, fmt.Errorf("enrich: brand resolver is required")
	case cfg.Filter == nil:
		return nil, fmt.Errorf("enrich: candidate filter is required")
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("enrich: extractor is required")
	case cfg.Audit == nil:
		return nil, fmt.Errorf("enrich: audit backend is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 8
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		provFilter: brand.Normalize(cfg.ProviderContains),
		logger:     logger.With("run_id", cfg.RunID),
	}, nil
}

// RunID returns the identifier audit records of this run carry.
func (o *Orchestrator) RunID() string { return o.cfg.RunID }

// Run processes the configured window of rows, mutating the rows' asset
// URLs in place. Every row in the window gets exactly one audit record.
// When the search backend signals quota exhaustion the current and all
// remaining rows are recorded as quota_exceeded and Run returns an error
// wrapping serp.ErrQuotaExceeded; rows filled before that point keep
// their URLs, so the caller should still persist the catalog.
func (o *Orchestrator) Run(ctx context.Context, rows []*catalog.Row) (Totals, error) {
	var totals Totals

	start := o.cfg.Offset
	if start < 0 {
		start = 0
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if o.cfg.Limit > 0 && start+o.cfg.Limit < end {
		end = start + o.cfg.Limit
	}
	batch := rows[start:end]

	o.logger.Info("starting enrichment",
		"rows", len(batch), "offset", start, "provider_contains", o.cfg.ProviderContains,
		"engine", o.cfg.Provider.Name())

	for i, row := range batch {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		rec, err := o.processRow(ctx, row)
		totals.Processed++

		if err != nil && errors.Is(err, serp.ErrQuotaExceeded) {
			o.logger.Warn("search quota exhausted, stopping run", "row", row.Index)
			rec.Status = StatusQuotaExceeded
			o.finishRow(ctx, rec, &totals)
			o.backfillQuota(ctx, batch[i+1:], &totals)
			return totals, fmt.Errorf("enrich: row %d: %w", row.Index, err)
		}

		o.finishRow(ctx, rec, &totals)
	}

	o.logger.Info("enrichment finished",
		"processed", totals.Processed, "filled", totals.Filled, "no_match", totals.NoMatch)
	return totals, nil
}

// processRow runs the decision ladder for one row. The returned record is
// always non-nil; a non-nil error is only ever a quota signal.
func (o *Orchestrator) processRow(ctx context.Context, row *catalog.Row) (*audit.Record, error) {
	brandTag := o.cfg.Resolver.Canonical(row.Provider)
	rec := &audit.Record{
		ID:            uuid.NewString(),
		RunID:         o.cfg.RunID,
		RowIndex:      row.Index,
		ArticleCode:   row.ArticleCode,
		SupplierRef:   row.SupplierRef,
		ProviderRaw:   row.Provider,
		BrandDetected: brandTag,
		CreatedAt:     time.Now().UTC(),
	}

	if o.cfg.Resolver.Excluded(row.Provider) {
		rec.Status = StatusExcluded
		return rec, nil
	}
	if o.provFilter != "" && !strings.Contains(brand.Normalize(row.Provider), o.provFilter) {
		rec.Status = StatusSkippedByFilter
		return rec, nil
	}
	if row.Complete() {
		rec.Status = StatusAlreadyComplete
		return rec, nil
	}

	// A provider filter naming FLUIDRA implies the whole group even when
	// the provider string itself resolves to no brand.
	if brandTag == "" && strings.Contains(o.provFilter, "FLUIDRA") {
		brandTag = "FLUIDRA"
		rec.BrandDetected = brandTag
	}

	if err := o.searchAndFill(ctx, row, brandTag, rec); err != nil {
		return rec, err
	}

	if rec.Status == "" && o.cfg.BrandFallback {
		if err := o.fallbackPass(ctx, row, brandTag, rec); err != nil {
			return rec, err
		}
	}

	if rec.Status == "" {
		rec.Status = StatusNoMatch
	}
	return rec, nil
}

// searchAndFill collects results for every query variant, ranks them and
// extracts assets from candidates in order. The first candidate yielding
// any needed asset fills the row.
func (o *Orchestrator) searchAndFill(ctx context.Context, row *catalog.Row, brandTag string, rec *audit.Record) error {
	var queries []string
	if hints := o.cfg.Resolver.Hints(brandTag); len(hints) > 0 {
		queries = query.BuildSite(hints, brandTag, row.SupplierRef, row.Description)
	}
	queries = append(queries, query.Build(brandTag, row.SupplierRef, row.Description)...)

	results, err := o.collect(ctx, queries)
	if err != nil {
		return err
	}

	o.tryCandidates(ctx, row, o.cfg.Filter.Rank(results, brandTag), "", rec)
	return nil
}

// fallbackPass tries the official domains of the remaining known brands in
// priority order. It runs when the row's own passes found nothing: the
// provider may be a reseller, or the article may be catalogued under a
// sister brand's site.
func (o *Orchestrator) fallbackPass(ctx context.Context, row *catalog.Row, triedBrand string, rec *audit.Record) error {
	for _, kb := range o.cfg.Resolver.Known() {
		if kb == triedBrand {
			continue
		}
		hints := o.cfg.Resolver.Hints(kb)
		if len(hints) == 0 {
			continue
		}
		results, err := o.collect(ctx, query.BuildSite(hints, kb, row.SupplierRef, row.Description))
		if err != nil {
			return err
		}
		o.tryCandidates(ctx, row, o.cfg.Filter.Rank(results, kb), PassFallback, rec)
		if rec.Status == StatusFilled {
			rec.BrandDetected = kb
			return nil
		}
	}
	return nil
}

// collect runs the queries in order and concatenates their results. Quota
// errors abort; any other search failure degrades to skipping that query.
func (o *Orchestrator) collect(ctx context.Context, queries []string) ([]serp.Result, error) {
	var all []serp.Result
	for _, q := range queries {
		results, err := o.cfg.Provider.Search(ctx, q, o.cfg.PageSize)
		if err != nil {
			if errors.Is(err, serp.ErrQuotaExceeded) {
				return nil, err
			}
			o.logger.Debug("search failed", "query", q, "err", err)
			continue
		}
		all = append(all, results...)
	}
	return all, nil
}

// tryCandidates extracts assets from ranked candidates until one yields a
// needed asset. passOverride relabels the recorded pass for the fallback.
func (o *Orchestrator) tryCandidates(ctx context.Context, row *catalog.Row, candidates []filter.Candidate, passOverride string, rec *audit.Record) {
	needImage, needPDF := row.NeedsImage(), row.NeedsPDF()

	for _, c := range candidates {
		image, pdf := o.cfg.Extractor.Extract(ctx, c.URL, needImage, needPDF)
		if !image.Found() && !pdf.Found() {
			continue
		}

		if image.Found() {
			row.ImageURL = image.URL
			rec.FoundImage = image.URL
		}
		if pdf.Found() {
			row.PDFURL = pdf.URL
			rec.FoundPDF = pdf.URL
		}
		rec.Status = StatusFilled
		rec.ChosenHost = c.Host
		rec.SourcePage = c.URL
		rec.SearchPass = string(c.Sweep)
		if passOverride != "" {
			rec.SearchPass = passOverride
		}

		o.logger.Info("row filled",
			"row", row.Index, "host", c.Host, "pass", rec.SearchPass,
			"image", image.Found(), "pdf", pdf.Found())
		return
	}
}

// finishRow persists the audit record and folds it into the totals.
func (o *Orchestrator) finishRow(ctx context.Context, rec *audit.Record, totals *Totals) {
	switch rec.Status {
	case StatusFilled:
		totals.Filled++
		if rec.FoundImage != "" {
			totals.ImagesFound++
		}
		if rec.FoundPDF != "" {
			totals.PDFsFound++
		}
	case StatusNoMatch:
		totals.NoMatch++
	case StatusAlreadyComplete:
		totals.AlreadyComplete++
	case StatusExcluded:
		totals.Excluded++
	case StatusSkippedByFilter:
		totals.SkippedByFilter++
	case StatusQuotaExceeded:
		totals.QuotaExceeded++
	}
	metrics.RowsTotal.WithLabelValues(rec.Status).Inc()

	if err := o.cfg.Audit.Save(ctx, rec); err != nil {
		o.logger.Error("failed to save audit record", "row", rec.RowIndex, "err", err)
	}
}

// backfillQuota records the rows the quota cut off, so a later run can
// resume exactly where this one stopped.
func (o *Orchestrator) backfillQuota(ctx context.Context, rest []*catalog.Row, totals *Totals) {
	for _, row := range rest {
		totals.Processed++
		rec := &audit.Record{
			ID:            uuid.NewString(),
			RunID:         o.cfg.RunID,
			RowIndex:      row.Index,
			ArticleCode:   row.ArticleCode,
			SupplierRef:   row.SupplierRef,
			ProviderRaw:   row.Provider,
			BrandDetected: o.cfg.Resolver.Canonical(row.Provider),
			Status:        StatusQuotaExceeded,
			CreatedAt:     time.Now().UTC(),
		}
		o.finishRow(ctx, rec, totals)
	}
}
