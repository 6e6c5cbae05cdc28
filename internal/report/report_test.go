package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/ferret/internal/audit"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	records := []*audit.Record{
		{
			Status:        "filled",
			BrandDetected: "JIMTEN",
			ChosenHost:    "www.jimten.com",
			SearchPass:    "brand",
			FoundImage:    "https://www.jimten.com/img/s40.jpg",
			FoundPDF:      "https://www.jimten.com/docs/s40.pdf",
			CreatedAt:     now,
		},
		{
			Status:        "filled",
			BrandDetected: "GENEBRE",
			ChosenHost:    "www.genebre.es",
			SearchPass:    "open",
			FoundImage:    "https://www.genebre.es/img/3186.jpg",
			CreatedAt:     now.Add(1 * time.Second),
		},
		{
			Status:        "no_match",
			BrandDetected: "ESPA",
			CreatedAt:     now.Add(2 * time.Second),
		},
		{
			Status:    "excluded_by_rule",
			CreatedAt: now.Add(3 * time.Second),
		},
	}

	summary := GenerateSummary(records)

	if summary.TotalRows != 4 {
		t.Errorf("expected 4 total rows, got %d", summary.TotalRows)
	}
	if summary.Filled != 2 {
		t.Errorf("expected 2 filled, got %d", summary.Filled)
	}
	if summary.ImagesFound != 2 {
		t.Errorf("expected 2 images, got %d", summary.ImagesFound)
	}
	if summary.PDFsFound != 1 {
		t.Errorf("expected 1 pdf, got %d", summary.PDFsFound)
	}
	if summary.ByStatus["filled"] != 2 || summary.ByStatus["no_match"] != 1 {
		t.Errorf("unexpected status counts: %v", summary.ByStatus)
	}
	if summary.ByBrand["JIMTEN"] != 1 || summary.ByBrand["GENEBRE"] != 1 {
		t.Errorf("unexpected brand counts: %v", summary.ByBrand)
	}
	if summary.ByHost["www.jimten.com"] != 1 {
		t.Errorf("unexpected host counts: %v", summary.ByHost)
	}
	if summary.ByPass["brand"] != 1 || summary.ByPass["open"] != 1 {
		t.Errorf("unexpected pass counts: %v", summary.ByPass)
	}
	if summary.Duration != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", summary.Duration)
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{
		TotalRows: 5,
	}
	var buf bytes.Buffer
	err := WriteJSON(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"TotalRows": 5`) {
		t.Errorf("expected JSON to contain TotalRows: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		TotalRows: 5,
		Filled:    3,
		ByStatus: map[string]int{
			"filled":   3,
			"no_match": 2,
		},
	}
	var buf bytes.Buffer
	err := WriteText(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Total Rows:    5") {
		t.Errorf("expected text to contain Total Rows: 5")
	}
	if !strings.Contains(out, "filled: 3") {
		t.Errorf("expected text to contain filled: 3")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		TotalRows: 10,
		Filled:    4,
		ByHost: map[string]int{
			"www.espa.com": 4,
		},
	}
	var buf bytes.Buffer
	err := WriteHTML(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Ferret Enrichment Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "www.espa.com") {
		t.Errorf("expected HTML to contain www.espa.com")
	}
}
