// Package catalog reads and writes the supplier catalog workbook. The
// workbook is the system of record: enrichment mutates only the two asset
// columns and leaves every other cell untouched.
package catalog

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// Column headers as they appear in the workbook's first row. Matching is
// case-insensitive. The asset columns are appended when missing; the rest
// are required.
const (
	ColArticleCode  = "Cód. Articulo Naves"
	ColSupplierRef  = "Referencia Proveedor"
	ColDescription  = "Artículo"
	ColProvider     = "Proveedor"
	ColProviderCode = "Cód. Proveedor"
	ColImageURL     = "URL Imagen Oficial"
	ColPDFURL       = "URL Ficha Técnica Oficial"
)

// Row is one catalog line. Index is the zero-based data row position,
// stable across load/save cycles, and is what --offset counts.
type Row struct {
	Index        int
	ArticleCode  string
	SupplierRef  string
	Description  string
	Provider     string
	ProviderCode string
	ImageURL     string
	PDFURL       string
}

// NeedsImage reports whether the image URL is still unresolved.
func (r *Row) NeedsImage() bool { return strings.TrimSpace(r.ImageURL) == "" }

// NeedsPDF reports whether the technical sheet URL is still unresolved.
func (r *Row) NeedsPDF() bool { return strings.TrimSpace(r.PDFURL) == "" }

// Complete reports whether both assets are already present.
func (r *Row) Complete() bool { return !r.NeedsImage() && !r.NeedsPDF() }

// Catalog holds the loaded workbook plus enough structure to write the
// asset columns back without disturbing anything else.
type Catalog struct {
	path     string
	file     *xlsx.File
	sheet    *xlsx.Sheet
	cols     map[string]int
	imageCol int
	pdfCol   int

	Rows []*Row
}

// Load opens the workbook at path and parses the first sheet. The header
// row must contain the reference, description and provider columns; the
// asset columns are created on save when absent.
func Load(path string) (*Catalog, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open workbook: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("catalog: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("catalog: sheet %q is empty", sheet.Name)
	}

	c := &Catalog{
		path:     path,
		file:     f,
		sheet:    sheet,
		cols:     make(map[string]int),
		imageCol: -1,
		pdfCol:   -1,
	}

	for i, cell := range sheet.Rows[0].Cells {
		header := strings.ToUpper(strings.TrimSpace(cell.String()))
		if header == "" {
			continue
		}
		if _, dup := c.cols[header]; !dup {
			c.cols[header] = i
		}
	}

	for _, required := range []string{ColSupplierRef, ColDescription, ColProvider} {
		if _, ok := c.colIndex(required); !ok {
			return nil, fmt.Errorf("catalog: required column %q not found in %q", required, sheet.Name)
		}
	}
	if i, ok := c.colIndex(ColImageURL); ok {
		c.imageCol = i
	}
	if i, ok := c.colIndex(ColPDFURL); ok {
		c.pdfCol = i
	}

	for i, xr := range sheet.Rows[1:] {
		row := &Row{
			Index:        i,
			ArticleCode:  c.cellValue(xr, ColArticleCode),
			SupplierRef:  c.cellValue(xr, ColSupplierRef),
			Description:  c.cellValue(xr, ColDescription),
			Provider:     c.cellValue(xr, ColProvider),
			ProviderCode: c.cellValue(xr, ColProviderCode),
			ImageURL:     c.cellValue(xr, ColImageURL),
			PDFURL:       c.cellValue(xr, ColPDFURL),
		}
		c.Rows = append(c.Rows, row)
	}

	return c, nil
}

func (c *Catalog) colIndex(name string) (int, bool) {
	i, ok := c.cols[strings.ToUpper(name)]
	return i, ok
}

func (c *Catalog) cellValue(row *xlsx.Row, col string) string {
	i, ok := c.colIndex(col)
	if !ok || i >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}

// Save writes the current Row values for the two asset columns back into
// the workbook at path. Missing asset columns are appended to the header
// row first.
func (c *Catalog) Save(path string) error {
	if path == "" {
		path = c.path
	}

	if c.imageCol < 0 {
		c.imageCol = c.appendHeader(ColImageURL)
	}
	if c.pdfCol < 0 {
		c.pdfCol = c.appendHeader(ColPDFURL)
	}

	for _, row := range c.Rows {
		xr := c.sheet.Rows[row.Index+1]
		setCell(xr, c.imageCol, row.ImageURL)
		setCell(xr, c.pdfCol, row.PDFURL)
	}

	if err := c.file.Save(path); err != nil {
		return fmt.Errorf("catalog: save workbook: %w", err)
	}
	return nil
}

func (c *Catalog) appendHeader(name string) int {
	header := c.sheet.Rows[0]
	idx := len(header.Cells)
	header.AddCell().SetString(name)
	return idx
}

func setCell(row *xlsx.Row, col int, value string) {
	for len(row.Cells) <= col {
		row.AddCell()
	}
	row.Cells[col].SetString(value)
}
