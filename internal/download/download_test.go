package download

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/ferret/internal/brand"
	"github.com/FranksOps/ferret/internal/catalog"
	"github.com/FranksOps/ferret/internal/fingerprint"
	"github.com/FranksOps/ferret/internal/scraper"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(t))
	})
	mux.HandleFunc("/sheet.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.HandleFunc("/broken.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func newDownloader(t *testing.T, cfg Config) *Downloader {
	t.Helper()
	fetcher, err := scraper.New(scraper.Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	cfg.Fetcher = fetcher
	cfg.Resolver = brand.NewResolver(brand.DefaultConfig())
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func TestRun_DownloadsAssets(t *testing.T) {
	ts := assetServer(t)
	defer ts.Close()

	outDir := filepath.Join(t.TempDir(), "CATALOGO")
	zipPath := filepath.Join(t.TempDir(), "CATALOGO.zip")
	d := newDownloader(t, Config{OutDir: outDir, ZipPath: zipPath})

	rows := []*catalog.Row{
		{
			Index: 0, ArticleCode: "A001", SupplierRef: "S-40",
			Provider: "JIMTEN S.A.", ProviderCode: "P01",
			ImageURL: ts.URL + "/img.png", PDFURL: ts.URL + "/sheet.pdf",
		},
		{
			Index: 1, ArticleCode: "A002", SupplierRef: "F-1",
			Provider: "FAMARA", ProviderCode: "P02",
			ImageURL: ts.URL + "/img.png",
		},
	}

	stats, err := d.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Rows != 2 || stats.SkippedExcluded != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ImagesOK != 1 || stats.PDFsOK != 1 {
		t.Errorf("expected one image and one pdf, got %+v", stats)
	}

	imgPath := filepath.Join(outDir, "IMAGENES", "P01 - JIMTEN S.A.", "A001 - S-40.jpg")
	data, err := os.ReadFile(imgPath)
	if err != nil {
		t.Fatalf("expected converted jpeg at %s: %v", imgPath, err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output is not a valid jpeg: %v", err)
	}

	pdfPath := filepath.Join(outDir, "FICHAS", "P01 - JIMTEN S.A.", "A001 - S-40.pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		t.Errorf("expected pdf at %s: %v", pdfPath, err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("expected zip archive: %v", err)
	}
	defer zr.Close()
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["IMAGENES/P01 - JIMTEN S.A./A001 - S-40.jpg"] {
		t.Errorf("zip missing image entry, got %v", names)
	}
	if !names["FICHAS/P01 - JIMTEN S.A./A001 - S-40.pdf"] {
		t.Errorf("zip missing pdf entry, got %v", names)
	}
}

func TestRun_ProviderFilterAndOverwrite(t *testing.T) {
	ts := assetServer(t)
	defer ts.Close()

	outDir := filepath.Join(t.TempDir(), "out")
	d := newDownloader(t, Config{OutDir: outDir, ProviderContains: "espa"})

	rows := []*catalog.Row{
		{Index: 0, ArticleCode: "A1", SupplierRef: "R1", Provider: "JIMTEN", ProviderCode: "P1",
			PDFURL: ts.URL + "/sheet.pdf"},
		{Index: 1, ArticleCode: "A2", SupplierRef: "R2", Provider: "ESPA PUMPS", ProviderCode: "P2",
			PDFURL: ts.URL + "/sheet.pdf"},
	}

	stats, err := d.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.SkippedProvider != 1 || stats.PDFsOK != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// A second run without overwrite skips the existing file.
	d2 := newDownloader(t, Config{OutDir: outDir, ProviderContains: "espa"})
	stats, _ = d2.Run(context.Background(), rows)
	if stats.PDFsOK != 0 || stats.PDFsSkipped != 1 {
		t.Errorf("expected existing pdf skipped, got %+v", stats)
	}

	// With overwrite it downloads again.
	d3 := newDownloader(t, Config{OutDir: outDir, ProviderContains: "espa", Overwrite: true})
	stats, _ = d3.Run(context.Background(), rows)
	if stats.PDFsOK != 1 {
		t.Errorf("expected overwrite to re-download, got %+v", stats)
	}
}

func TestRun_FailedDownloadCounted(t *testing.T) {
	ts := assetServer(t)
	defer ts.Close()

	d := newDownloader(t, Config{OutDir: filepath.Join(t.TempDir(), "out")})
	rows := []*catalog.Row{
		{Index: 0, ArticleCode: "A1", SupplierRef: "R1", Provider: "GENEBRE", ProviderCode: "P1",
			PDFURL: ts.URL + "/broken.pdf"},
	}

	stats, err := d.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PDFsOK != 0 || stats.PDFsSkipped != 1 {
		t.Errorf("expected failed pdf counted as skipped, got %+v", stats)
	}
}

func TestSafeName(t *testing.T) {
	got := safeName(`P01 - JIMTEN/S.A. <valvulas>`)
	if got != "P01 - JIMTEN S.A. valvulas" {
		t.Errorf("unexpected safe name %q", got)
	}
}
