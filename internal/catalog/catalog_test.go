package catalog

import (
	"path/filepath"
	"testing"

	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Articulos")
	if err != nil {
		t.Fatalf("add sheet: %v", err)
	}
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	if err := f.Save(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{ColArticleCode, ColSupplierRef, ColDescription, ColProvider, ColProviderCode, ColImageURL, ColPDFURL},
		{"A001", "S-40", "SIFON BOTELLA", "JIMTEN S.A.", "P01", "", ""},
		{"A002", "3186 04", "VALVULA BOLA", "GENEBRE", "P02", "https://img.example/v.jpg", "https://doc.example/v.pdf"},
	})

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(cat.Rows))
	}

	r := cat.Rows[0]
	if r.Index != 0 || r.ArticleCode != "A001" || r.SupplierRef != "S-40" ||
		r.Description != "SIFON BOTELLA" || r.Provider != "JIMTEN S.A." {
		t.Errorf("unexpected first row: %+v", r)
	}
	if !r.NeedsImage() || !r.NeedsPDF() || r.Complete() {
		t.Error("first row should need both assets")
	}

	r = cat.Rows[1]
	if r.NeedsImage() || r.NeedsPDF() || !r.Complete() {
		t.Error("second row should be complete")
	}
}

func TestLoad_MissingRequiredColumn(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{ColArticleCode, ColDescription, ColProvider},
		{"A001", "SIFON", "JIMTEN"},
	})

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing supplier reference column")
	}
}

func TestSave_AppendsAssetColumns(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{ColArticleCode, ColSupplierRef, ColDescription, ColProvider},
		{"A001", "S-40", "SIFON BOTELLA", "JIMTEN"},
	})

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cat.Rows[0].ImageURL = "https://www.jimten.com/img/s40.jpg"
	cat.Rows[0].PDFURL = "https://www.jimten.com/docs/s40.pdf"

	out := filepath.Join(t.TempDir(), "enriched.xlsx")
	if err := cat.Save(out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reread, err := Load(out)
	if err != nil {
		t.Fatalf("reload saved workbook: %v", err)
	}
	r := reread.Rows[0]
	if r.ImageURL != "https://www.jimten.com/img/s40.jpg" {
		t.Errorf("image url not persisted, got %q", r.ImageURL)
	}
	if r.PDFURL != "https://www.jimten.com/docs/s40.pdf" {
		t.Errorf("pdf url not persisted, got %q", r.PDFURL)
	}
	if r.SupplierRef != "S-40" || r.Description != "SIFON BOTELLA" {
		t.Error("existing cells must survive a save")
	}
}

func TestSave_PreservesUntouchedRows(t *testing.T) {
	// Header casing varies between catalog exports; matching is insensitive.
	path := writeWorkbook(t, [][]string{
		{"REFERENCIA PROVEEDOR", "ARTÍCULO", "PROVEEDOR", ColImageURL, ColPDFURL},
		{"R1", "D1", "P1", "keep-this", "and-this"},
		{"R2", "D2", "P2", "", ""},
	})

	cat, _ := Load(path)
	cat.Rows[1].ImageURL = "https://img.example/r2.jpg"

	if err := cat.Save(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reread, _ := Load(path)
	if reread.Rows[0].ImageURL != "keep-this" || reread.Rows[0].PDFURL != "and-this" {
		t.Error("untouched row's asset urls must be preserved")
	}
	if reread.Rows[1].ImageURL != "https://img.example/r2.jpg" {
		t.Error("modified row's asset url must be written")
	}
}
