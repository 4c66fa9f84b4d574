// Package report renders reconciliation results as an XLSX workbook and
// delivers it to storage.
package report

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/reconcile"
)

// HighlightColor fills every cell of an opportunity row.
const HighlightColor = "FFF59D"

// SheetName is the worksheet holding the results for source.
func SheetName(source string) string {
	name := "Precios " + source
	if len([]rune(name)) > 31 { // Excel's sheet name limit
		name = string([]rune(name)[:31])
	}
	return name
}

// Headers returns the report's column titles.
func Headers(source string) []string {
	return []string{"sku", "nombre_producto", "precio_publico", "precio_" + source, "diferencia", "url"}
}

// Render builds the workbook: one row per result in the given order, missing
// prices left blank, opportunities highlighted.
func Render(source string, results []entity.ExtractionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(source)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, eris.Wrap(err, "report: rename sheet")
	}

	headers := Headers(source)
	for i, h := range headers {
		if err := setCell(f, sheet, i+1, 1, h); err != nil {
			return nil, err
		}
	}

	highlight, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{HighlightColor}, Pattern: 1},
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: create highlight style")
	}

	for i, r := range results {
		row := i + 2
		out := reconcile.Classify(r)
		values := []any{r.SKU, r.ProductName, price(r.BasePrice), price(r.ScrapedPrice), price(out.Difference), r.URL}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := setCell(f, sheet, col+1, row, v); err != nil {
				return nil, err
			}
		}
		if out.IsOpportunity {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(headers), row)
			if err := f.SetCellStyle(sheet, first, last, highlight); err != nil {
				return nil, eris.Wrapf(err, "report: highlight row %d", row)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "report: write workbook")
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return eris.Wrapf(err, "report: cell %d,%d", col, row)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return eris.Wrapf(err, "report: set %s", cell)
	}
	return nil
}

// price unwraps a nullable amount; nil stays nil so the cell is left blank.
func price(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
