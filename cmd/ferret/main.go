// Command ferret enriches a supplier catalog workbook with official
// product image and technical sheet URLs, downloads the resolved assets,
// and reports on past runs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/ferret/internal/audit"
	"github.com/FranksOps/ferret/internal/audit/csvbackend"
	"github.com/FranksOps/ferret/internal/audit/postgres"
	"github.com/FranksOps/ferret/internal/audit/sqlite"
	"github.com/FranksOps/ferret/internal/config"
	"github.com/FranksOps/ferret/internal/fingerprint"
	"github.com/FranksOps/ferret/internal/scraper"
	"github.com/FranksOps/ferret/internal/serp"
	"github.com/FranksOps/ferret/pkg/proxy"
	"github.com/FranksOps/ferret/pkg/ratelimit"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ferret",
	Short: "Catalog asset enrichment",
	Long:  "Resolves official product image and technical sheet URLs for supplier catalog rows via web search and page scraping, with a resumable, quota-aware audit trail.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// buildFetcher assembles the shared page fetcher from config. The limiter
// paces every fetch; for asset pages this is politeness, for the scrape
// search backend it is the quota contract.
func buildFetcher(limiter *ratelimit.Limiter) (*scraper.Fetcher, error) {
	var pool *proxy.Pool
	if cfg.Fetch.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, fmt.Errorf("load proxy file: %w", err)
		}
	}

	return scraper.New(scraper.Config{
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Fingerprint: fingerprint.Profile(cfg.Fetch.Fingerprint),
		ProxyPool:   pool,
		Limiter:     limiter,
	})
}

// buildProvider selects the search backend named by config.
func buildProvider(fetcher *scraper.Fetcher, limiter *ratelimit.Limiter) (serp.Provider, error) {
	var (
		provider serp.Provider
		err      error
	)
	switch cfg.Search.Engine {
	case "cse":
		provider, err = serp.NewCSE(serp.CSEConfig{
			Key:     cfg.CSE.Key,
			CX:      cfg.CSE.CX,
			Limiter: limiter,
		})
	case "scrape":
		provider, err = serp.NewScrape(serp.ScrapeConfig{Fetcher: fetcher})
	case "sitemap":
		provider, err = serp.NewSitemapWalk(fetcher, slog.Default())
	default:
		return nil, fmt.Errorf("unknown search engine %q", cfg.Search.Engine)
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// buildAudit opens the audit sink named by config.
func buildAudit(ctx context.Context) (audit.Backend, error) {
	switch cfg.Audit.Backend {
	case "csv":
		return csvbackend.New(cfg.Audit.Path)
	case "sqlite":
		return sqlite.New(cfg.Audit.Path)
	case "postgres":
		return postgres.New(ctx, cfg.Audit.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}
