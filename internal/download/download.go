// Package download materializes the enriched catalog as files on disk:
// one JPEG per image URL and one PDF per sheet URL, organized per
// provider, optionally packed into a single ZIP for distribution.
//
// Output layout:
//
//	CATALOGO/
//	  IMAGENES/<provider code - provider>/<article code - supplier ref>.jpg
//	  FICHAS/<provider code - provider>/<article code - supplier ref>.pdf
package download

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/catalog"
	"github.com/FranksOps/ferret/internal/scraper"
)

const (
	DefaultOutDir  = "CATALOGO"
	DefaultZipName = "CATALOGO.zip"

	imagesDir = "IMAGENES"
	sheetsDir = "FICHAS"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	spaceRuns   = regexp.MustCompile(`\s+`)
	imageExt    = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|webp|bmp|gif|tif|tiff)$`)
)

// Config wires a Downloader.
type Config struct {
	Fetcher  *scraper.Fetcher
	Resolver *brand.Resolver

	// ProviderContains restricts downloads to rows whose provider name
	// contains this text after normalization.
	ProviderContains string
	OutDir           string
	// ZipPath is the archive written after downloading; empty skips the
	// ZIP step.
	ZipPath   string
	Overwrite bool
	// Concurrency bounds parallel downloads. Asset hosts are ordinary
	// product sites, not search APIs, so moderate parallelism is safe.
	Concurrency int

	Logger *slog.Logger
}

// Stats summarizes one download run.
type Stats struct {
	Rows            int
	SkippedExcluded int
	SkippedProvider int
	ImagesOK        int
	ImagesSkipped   int
	PDFsOK          int
	PDFsSkipped     int
}

// Downloader fetches catalog assets to disk.
type Downloader struct {
	cfg        Config
	provFilter string
	logger     *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New validates the wiring and builds a Downloader.
func New(cfg Config) (*Downloader, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("download: fetcher is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("download: brand resolver is required")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		cfg:        cfg,
		provFilter: brand.Normalize(cfg.ProviderContains),
		logger:     logger,
	}, nil
}

// Run downloads the assets of every eligible row and, when configured,
// packs the output directory into a ZIP.
func (d *Downloader) Run(ctx context.Context, rows []*catalog.Row) (Stats, error) {
	for _, sub := range []string{imagesDir, sheetsDir} {
		if err := os.MkdirAll(filepath.Join(d.cfg.OutDir, sub), 0755); err != nil {
			return d.stats, fmt.Errorf("download: create output dir: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for _, row := range rows {
		d.addStat(func(s *Stats) { s.Rows++ })

		if d.cfg.Resolver.Excluded(row.Provider) {
			d.addStat(func(s *Stats) { s.SkippedExcluded++ })
			continue
		}
		if d.provFilter != "" && !strings.Contains(brand.Normalize(row.Provider), d.provFilter) {
			d.addStat(func(s *Stats) { s.SkippedProvider++ })
			continue
		}

		row := row
		g.Go(func() error {
			d.downloadRow(gctx, row)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return d.stats, err
	}

	if d.cfg.ZipPath != "" {
		if err := zipDir(d.cfg.OutDir, d.cfg.ZipPath); err != nil {
			return d.stats, err
		}
	}

	d.logger.Info("download finished",
		"rows", d.stats.Rows, "images", d.stats.ImagesOK, "pdfs", d.stats.PDFsOK)
	return d.stats, nil
}

func (d *Downloader) downloadRow(ctx context.Context, row *catalog.Row) {
	folder := safeName(strings.TrimSpace(row.ProviderCode + " - " + row.Provider))
	if strings.Trim(folder, " -") == "" {
		folder = "SIN_PROVEEDOR"
	}
	base := safeName(strings.TrimSpace(row.ArticleCode + " - " + row.SupplierRef))
	if strings.Trim(base, " -") == "" {
		base = fmt.Sprintf("fila_%d", row.Index+1)
	}

	if row.ImageURL != "" {
		dest := filepath.Join(d.cfg.OutDir, imagesDir, folder, base+".jpg")
		switch {
		case !d.cfg.Overwrite && exists(dest):
			d.addStat(func(s *Stats) { s.ImagesSkipped++ })
		case d.downloadImage(ctx, row.ImageURL, dest):
			d.addStat(func(s *Stats) { s.ImagesOK++ })
		default:
			d.addStat(func(s *Stats) { s.ImagesSkipped++ })
		}
	}

	if row.PDFURL != "" {
		dest := filepath.Join(d.cfg.OutDir, sheetsDir, folder, base+".pdf")
		switch {
		case !d.cfg.Overwrite && exists(dest):
			d.addStat(func(s *Stats) { s.PDFsSkipped++ })
		case d.downloadPDF(ctx, row.PDFURL, dest):
			d.addStat(func(s *Stats) { s.PDFsOK++ })
		default:
			d.addStat(func(s *Stats) { s.PDFsSkipped++ })
		}
	}
}

// downloadImage fetches the URL and re-encodes whatever image format it
// gets as JPEG, so the output tree is uniform.
func (d *Downloader) downloadImage(ctx context.Context, url, dest string) bool {
	res := d.cfg.Fetcher.Fetch(ctx, url)
	if res.Error != "" || res.StatusCode >= 400 || res.Challenged {
		d.logger.Debug("image fetch failed", "url", url, "status", res.StatusCode, "err", res.Error)
		return false
	}
	if !strings.HasPrefix(res.ContentType, "image/") && !imageExt.MatchString(url) {
		return false
	}

	img, _, err := image.Decode(bytes.NewReader(res.Body))
	if err != nil {
		d.logger.Debug("image decode failed", "url", url, "err", err)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false
	}
	f, err := os.Create(dest)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		d.logger.Debug("jpeg encode failed", "url", url, "err", err)
		_ = os.Remove(dest)
		return false
	}
	return true
}

// downloadPDF fetches the URL and writes it verbatim. A wrong server
// content type is tolerated when the URL itself says .pdf.
func (d *Downloader) downloadPDF(ctx context.Context, url, dest string) bool {
	res := d.cfg.Fetcher.Fetch(ctx, url)
	if res.Error != "" || res.StatusCode >= 400 || res.Challenged {
		d.logger.Debug("pdf fetch failed", "url", url, "status", res.StatusCode, "err", res.Error)
		return false
	}
	if !strings.Contains(res.ContentType, "application/pdf") &&
		!strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return false
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false
	}
	if err := os.WriteFile(dest, res.Body, 0644); err != nil {
		return false
	}
	return true
}

func (d *Downloader) addStat(fn func(*Stats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.stats)
}

// safeName keeps letters, digits, hyphens and spaces, collapsing runs.
func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// zipDir packs every file under root into a fresh archive at zipPath,
// with paths relative to root.
func zipDir(root, zipPath string) error {
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("download: remove old zip: %w", err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("download: create zip: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("download: write zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("download: close zip: %w", err)
	}
	return nil
}
