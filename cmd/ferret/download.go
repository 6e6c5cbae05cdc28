package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/catalog"
	"github.com/FranksOps/ferret/internal/download"
)

var downloadFlags struct {
	excel            string
	outDir           string
	zipName          string
	providerContains string
	overwrite        bool
	concurrency      int
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the enriched catalog's assets and pack them into a ZIP",
	RunE:  runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.StringVar(&downloadFlags.excel, "excel", "data/RESUMEN_CATALOGO_READY.xlsx", "enriched workbook")
	f.StringVar(&downloadFlags.outDir, "out-dir", "", "output directory (default from config)")
	f.StringVar(&downloadFlags.zipName, "zip-name", "", "zip archive to create (default from config)")
	f.StringVar(&downloadFlags.providerContains, "provider-contains", "", "only rows whose provider contains this text")
	f.BoolVar(&downloadFlags.overwrite, "overwrite", false, "overwrite existing files")
	f.IntVar(&downloadFlags.concurrency, "concurrency", 0, "parallel downloads (0 = config default)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if downloadFlags.outDir == "" {
		downloadFlags.outDir = cfg.Download.OutDir
	}
	if downloadFlags.zipName == "" {
		downloadFlags.zipName = cfg.Download.ZipName
	}
	if downloadFlags.concurrency == 0 {
		downloadFlags.concurrency = cfg.Download.Concurrency
	}

	cat, err := catalog.Load(downloadFlags.excel)
	if err != nil {
		return err
	}

	fetcher, err := buildFetcher(nil)
	if err != nil {
		return err
	}

	d, err := download.New(download.Config{
		Fetcher:          fetcher,
		Resolver:         brand.NewResolver(brand.DefaultConfig()),
		ProviderContains: downloadFlags.providerContains,
		OutDir:           downloadFlags.outDir,
		ZipPath:          downloadFlags.zipName,
		Overwrite:        downloadFlags.overwrite,
		Concurrency:      downloadFlags.concurrency,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	stats, err := d.Run(cmd.Context(), cat.Rows)
	if err != nil {
		return err
	}

	logger.Info("download stats",
		"rows", stats.Rows,
		"images_ok", stats.ImagesOK, "images_skipped", stats.ImagesSkipped,
		"pdfs_ok", stats.PDFsOK, "pdfs_skipped", stats.PDFsSkipped,
		"skipped_excluded", stats.SkippedExcluded, "skipped_provider", stats.SkippedProvider)
	return nil
}
