// Package extract pulls the two target assets, an official product image
// and a technical sheet PDF, out of a candidate page. Extraction is
// structural: it reads markup and confirms content types with header
// probes, it never interprets page text.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/ferret/internal/metrics"
	"github.com/FranksOps/ferret/internal/scraper"
)

// Reasons recorded on found assets. They explain which rule produced the
// URL, for the audit trail.
const (
	ReasonDirectPDF    = "direct_pdf"
	ReasonDirectImage  = "direct_image"
	ReasonLinkProbe    = "pdf_link_probe"
	ReasonOGImage      = "og_image"
	ReasonLargestImage = "largest_image"
)

// Asset is a confirmed downloadable asset. A zero Asset means not found.
type Asset struct {
	URL    string
	Reason string
}

// Found reports whether the asset was resolved.
func (a Asset) Found() bool { return a.URL != "" }

// maxImageProbes caps header probes per page so a gallery page cannot
// burn the whole crawl budget.
const maxImageProbes = 12

// Extractor fetches candidate pages and resolves assets from them.
type Extractor struct {
	fetcher *scraper.Fetcher
	robots  *scraper.RobotsAuditor
	logger  *slog.Logger
}

// New builds an Extractor on top of the given fetcher.
func New(fetcher *scraper.Fetcher, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{fetcher: fetcher, logger: logger}
}

// WithRobots adds a robots.txt gate: candidate pages disallowed for the
// given agent are skipped without fetching.
func (e *Extractor) WithRobots(robots *scraper.RobotsAuditor) *Extractor {
	e.robots = robots
	return e
}

// Extract visits pageURL and returns whichever of the two assets it can
// confirm. needImage and needPDF let the caller skip work for assets the
// row already has. A candidate page that cannot be fetched yields two
// empty assets, never an error: the caller simply moves to the next
// candidate.
func (e *Extractor) Extract(ctx context.Context, pageURL string, needImage, needPDF bool) (image, pdf Asset) {
	if e.robots != nil {
		if allowed, err := e.robots.IsAllowed(ctx, pageURL, "ferret"); err == nil && !allowed {
			e.logger.Debug("candidate page disallowed by robots.txt", "url", pageURL)
			return image, pdf
		}
	}

	res := e.fetcher.Fetch(ctx, pageURL)
	if res.Error != "" || res.Challenged || res.StatusCode >= 400 {
		e.logger.Debug("candidate page unusable",
			"url", pageURL, "status", res.StatusCode, "err", res.Error, "challenged", res.Challenged)
		return image, pdf
	}

	// The search result may point straight at the asset.
	switch {
	case strings.HasPrefix(res.ContentType, "application/pdf"):
		if needPDF {
			pdf = Asset{URL: pageURL, Reason: ReasonDirectPDF}
			metrics.AssetsFoundTotal.WithLabelValues("pdf").Inc()
		}
		return image, pdf
	case strings.HasPrefix(res.ContentType, "image/") && !strings.Contains(res.ContentType, "svg"):
		if needImage {
			image = Asset{URL: pageURL, Reason: ReasonDirectImage}
			metrics.AssetsFoundTotal.WithLabelValues("image").Inc()
		}
		return image, pdf
	}

	if !strings.Contains(res.ContentType, "html") {
		return image, pdf
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		e.logger.Debug("candidate page not parseable", "url", pageURL, "err", err)
		return image, pdf
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return image, pdf
	}

	if needPDF {
		pdf = e.findPDF(ctx, doc, base)
		if pdf.Found() {
			metrics.AssetsFoundTotal.WithLabelValues("pdf").Inc()
		}
	}
	if needImage {
		image = e.findImage(ctx, doc, base)
		if image.Found() {
			metrics.AssetsFoundTotal.WithLabelValues("image").Inc()
		}
	}
	return image, pdf
}

// findPDF scans anchors whose href mentions ".pdf" and returns the first
// one whose probe confirms a PDF content type.
func (e *Extractor) findPDF(ctx context.Context, doc *goquery.Document, base *url.URL) Asset {
	var found Asset
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.Contains(strings.ToLower(href), ".pdf") {
			return true
		}
		abs := resolveRef(base, href)
		if abs == "" || seen[abs] {
			return true
		}
		seen[abs] = true

		probe := e.fetcher.Probe(ctx, abs)
		if probe.Error == "" && probe.StatusCode < 400 &&
			strings.HasPrefix(probe.ContentType, "application/pdf") {
			found = Asset{URL: abs, Reason: ReasonLinkProbe}
			return false
		}
		return true
	})
	return found
}

// findImage prefers the page's og:image declaration; failing that it
// probes <img> tags and keeps the one with the largest declared area.
// Ties at equal area keep the first confirmed image. SVG files are never
// product photos in the catalogs this runs against.
func (e *Extractor) findImage(ctx context.Context, doc *goquery.Document, base *url.URL) Asset {
	if og := e.ogImage(ctx, doc, base); og.Found() {
		return og
	}

	var (
		best     Asset
		bestArea = -1
		probes   int
	)
	seen := make(map[string]bool)
	doc.Find("img[src]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		abs := resolveRef(base, src)
		if abs == "" || seen[abs] || strings.HasSuffix(strings.ToLower(abs), ".svg") {
			return true
		}
		seen[abs] = true

		area := attrInt(sel, "width") * attrInt(sel, "height")
		if area <= bestArea {
			return true
		}

		if probes >= maxImageProbes {
			return false
		}
		probes++
		probe := e.fetcher.Probe(ctx, abs)
		if probe.Error != "" || probe.StatusCode >= 400 ||
			!strings.HasPrefix(probe.ContentType, "image/") ||
			strings.Contains(probe.ContentType, "svg") {
			return true
		}
		best = Asset{URL: abs, Reason: ReasonLargestImage}
		bestArea = area
		return true
	})
	return best
}

func (e *Extractor) ogImage(ctx context.Context, doc *goquery.Document, base *url.URL) Asset {
	var raw string
	doc.Find(`meta[property="og:image"], meta[name="og:image"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw, _ = sel.Attr("content")
		return raw == ""
	})
	abs := resolveRef(base, raw)
	if abs == "" || strings.HasSuffix(strings.ToLower(abs), ".svg") {
		return Asset{}
	}
	probe := e.fetcher.Probe(ctx, abs)
	if probe.Error == "" && probe.StatusCode < 400 &&
		strings.HasPrefix(probe.ContentType, "image/") &&
		!strings.Contains(probe.ContentType, "svg") {
		return Asset{URL: abs, Reason: ReasonOGImage}
	}
	return Asset{}
}

// resolveRef resolves href against the page URL and keeps only http(s).
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func attrInt(sel *goquery.Selection, name string) int {
	v, _ := sel.Attr(name)
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
