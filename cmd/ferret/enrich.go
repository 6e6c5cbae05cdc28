package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/ferret/internal/audit"
	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/catalog"
	"github.com/FranksOps/ferret/internal/enrich"
	"github.com/FranksOps/ferret/internal/extract"
	"github.com/FranksOps/ferret/internal/filter"
	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/internal/report"
	"github.com/FranksOps/ferret/internal/scraper"
	"github.com/FranksOps/ferret/internal/serp"
	"github.com/FranksOps/ferret/pkg/ratelimit"
)

var enrichFlags struct {
	excel            string
	out              string
	offset           int
	limit            int
	sleepMS          int
	providerContains string
	engine           string
	pageSize         int
	brandFallback    bool
	serveMetrics     bool
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing image and sheet URLs in the catalog workbook",
	RunE:  runEnrich,
}

func init() {
	f := enrichCmd.Flags()
	f.StringVar(&enrichFlags.excel, "excel", "data/RESUMEN_CATALOGO.xlsx", "input workbook")
	f.StringVar(&enrichFlags.out, "out", "data/RESUMEN_CATALOGO_READY.xlsx", "output workbook")
	f.IntVar(&enrichFlags.offset, "offset", 0, "zero-based row to start at")
	f.IntVar(&enrichFlags.limit, "limit", 0, "max rows to process, 0 = all remaining")
	f.IntVar(&enrichFlags.sleepMS, "sleep-ms", 0, "pause between search calls (0 = config default)")
	f.StringVar(&enrichFlags.providerContains, "provider-contains", "", "only rows whose provider contains this text")
	f.StringVar(&enrichFlags.engine, "engine", "", "search backend: cse, scrape or sitemap (default from config)")
	f.IntVar(&enrichFlags.pageSize, "page-size", 0, "results per search query (0 = config default)")
	f.BoolVar(&enrichFlags.brandFallback, "brand-fallback", true, "try the remaining known brands' domains when a row's own search finds nothing")
	f.BoolVar(&enrichFlags.serveMetrics, "metrics", false, "expose Prometheus metrics while running")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	if enrichFlags.engine != "" {
		cfg.Search.Engine = enrichFlags.engine
	}
	if enrichFlags.sleepMS > 0 {
		cfg.Search.SleepMS = enrichFlags.sleepMS
	}
	if enrichFlags.pageSize > 0 {
		cfg.Search.PageSize = enrichFlags.pageSize
	}

	cat, err := catalog.Load(enrichFlags.excel)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewDelayLimiter(time.Duration(cfg.Search.SleepMS) * time.Millisecond)
	defer limiter.Stop()

	fetcher, err := buildFetcher(limiter)
	if err != nil {
		return err
	}
	provider, err := buildProvider(fetcher, limiter)
	if err != nil {
		return err
	}
	sink, err := buildAudit(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	if enrichFlags.serveMetrics || cfg.Metrics.Enabled {
		srv := metrics.Start(cfg.Metrics.Port)
		defer func() { _ = srv.Stop(ctx) }()
	}

	extractor := extract.New(fetcher, logger)
	if cfg.Fetch.RespectRobots {
		extractor = extractor.WithRobots(scraper.NewRobotsAuditor(fetcher, logger))
	}

	resolver := brand.NewResolver(brand.DefaultConfig())
	orch, err := enrich.New(enrich.Config{
		Provider:         provider,
		Resolver:         resolver,
		Filter:           filter.New(filter.Config{Resolver: resolver}),
		Extractor:        extractor,
		Audit:            sink,
		ProviderContains: enrichFlags.providerContains,
		Offset:           enrichFlags.offset,
		Limit:            enrichFlags.limit,
		PageSize:         cfg.Search.PageSize,
		BrandFallback:    enrichFlags.brandFallback,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	totals, runErr := orch.Run(ctx, cat.Rows)

	// Progress made before a quota stop or cancellation is still saved.
	if err := cat.Save(enrichFlags.out); err != nil {
		return err
	}
	logger.Info("workbook saved", "path", enrichFlags.out, "filled", totals.Filled)

	records, err := sink.Query(ctx, audit.Filter{RunID: orch.RunID()})
	if err != nil {
		logger.Warn("could not read back audit records for summary", "err", err)
	} else if err := report.WriteText(os.Stdout, report.GenerateSummary(records)); err != nil {
		return err
	}

	if runErr != nil {
		if errors.Is(runErr, serp.ErrQuotaExceeded) {
			logger.Warn("run stopped early: search quota exhausted, rerun later with the same offset")
			return nil
		}
		return fmt.Errorf("enrich: %w", runErr)
	}
	return nil
}
