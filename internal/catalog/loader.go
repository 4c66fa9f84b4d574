// Package catalog reads the merchant's product catalog from an XLSX workbook.
package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/extractor"
	"github.com/user/price-reconciler/internal/repository"
)

// Columns names the header cells holding each required field.
type Columns struct {
	SKU       string
	Name      string
	BasePrice string
	URL       string
}

// DefaultColumns matches the merchant's published workbook.
func DefaultColumns() Columns {
	return Columns{SKU: "sku", Name: "nombre_producto", BasePrice: "precio_publico", URL: "link"}
}

// MissingColumnError is fatal: the workbook cannot be mapped onto products.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("catalog: missing required column %q", e.Column)
}

// Loader turns catalog workbooks into product records.
type Loader struct {
	columns Columns
	logger  *zap.Logger
}

func NewLoader(cols Columns, logger *zap.Logger) *Loader {
	return &Loader{columns: cols, logger: logger}
}

// Parse reads the first worksheet of the workbook in data. The first row is
// the header; every later row with a URL becomes one ProductRecord, in sheet
// order. Rows without a URL are skipped.
func (l *Loader) Parse(data []byte) ([]entity.ProductRecord, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("catalog: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 || sheet.Rows[0] == nil {
		return nil, &MissingColumnError{Column: l.columns.SKU}
	}

	idx, err := l.headerIndex(sheet.Rows[0])
	if err != nil {
		return nil, err
	}

	var products []entity.ProductRecord
	skipped := 0
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		url := cellString(row, idx.url)
		if url == "" {
			skipped++
			continue
		}
		products = append(products, entity.ProductRecord{
			SKU:         cellString(row, idx.sku),
			ProductName: cellString(row, idx.name),
			BasePrice:   basePrice(row, idx.basePrice),
			URL:         url,
		})
	}

	l.logger.Info("catalog loaded",
		zap.String("sheet", sheet.Name),
		zap.Int("products", len(products)),
		zap.Int("skipped_without_url", skipped),
	)
	return products, nil
}

type columnIndex struct {
	sku, name, basePrice, url int
}

func (l *Loader) headerIndex(header *xlsx.Row) (columnIndex, error) {
	positions := make(map[string]int, len(header.Cells))
	for i, cell := range header.Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		if _, dup := positions[key]; !dup && key != "" {
			positions[key] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := positions[strings.ToLower(name)]
		if !ok {
			return 0, &MissingColumnError{Column: name}
		}
		return i, nil
	}

	var idx columnIndex
	var err error
	if idx.sku, err = lookup(l.columns.SKU); err != nil {
		return idx, err
	}
	if idx.name, err = lookup(l.columns.Name); err != nil {
		return idx, err
	}
	if idx.basePrice, err = lookup(l.columns.BasePrice); err != nil {
		return idx, err
	}
	if idx.url, err = lookup(l.columns.URL); err != nil {
		return idx, err
	}
	return idx, nil
}

func cellString(row *xlsx.Row, i int) string {
	if i >= len(row.Cells) || row.Cells[i] == nil {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}

// basePrice reads the stored value of a numeric cell, ignoring its display
// format, and rounds it to whole currency units. Any other cell goes through
// ParseBasePrice.
func basePrice(row *xlsx.Row, i int) *int64 {
	if i >= len(row.Cells) || row.Cells[i] == nil {
		return nil
	}
	cell := row.Cells[i]
	if cell.Type() == xlsx.CellTypeNumeric && strings.TrimSpace(cell.Value) != "" {
		f, err := cell.Float()
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			v := int64(math.Round(f))
			return &v
		}
	}
	return ParseBasePrice(cell.String())
}

// ParseBasePrice reads a textual catalog price. Blank text is nil; anything
// else keeps its digits only, so "$12.990" and "12.990" are both 12990.
func ParseBasePrice(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return extractor.NormalizePrice(raw)
}

// Fetch returns the raw catalog workbook: from path on fs when path is set,
// otherwise the named object from the store.
func Fetch(ctx context.Context, fs afero.Fs, path string, store repository.ObjectStore, object string) ([]byte, error) {
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		return data, nil
	}
	if store == nil || object == "" {
		return nil, eris.New("catalog: neither a local path nor a storage object is configured")
	}
	data, err := store.Get(ctx, object)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: download %s", object)
	}
	return data, nil
}
