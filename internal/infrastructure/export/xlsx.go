// Package export writes the price comparison workbook.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/primerjalnik/backend/internal/domain"
)

// SheetName is the worksheet holding the comparison table.
const SheetName = "Price Comparison"

var fixedHeaders = []string{"Product ID", "Product", "Unit"}

// Workbook builds a table with one row per canonical product and one column
// per retailer. Sale prices are highlighted.
func Workbook(products []domain.CanonicalProduct) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	saleStyle, err := f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
		NumFmt: 2,
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sale style: %w", err)
	}

	retailers := retailerColumns(products)
	headers := append(append([]string{}, fixedHeaders...), retailers...)
	headers = append(headers, "Lowest", "Listings")

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, header)
		f.SetCellStyle(SheetName, cell, cell, headerStyle)
	}

	for rowIdx, p := range products {
		row := rowIdx + 2
		f.SetCellValue(SheetName, cellName(1, row), p.ID)
		f.SetCellValue(SheetName, cellName(2, row), p.CanonicalName)
		f.SetCellValue(SheetName, cellName(3, row), p.Unit)

		for i, retailer := range retailers {
			price, ok := p.PerRetailerPrices[retailer]
			if !ok {
				continue
			}
			cell := cellName(len(fixedHeaders)+i+1, row)
			f.SetCellValue(SheetName, cell, price.Price)
			if price.OnSale {
				f.SetCellStyle(SheetName, cell, cell, saleStyle)
			}
		}

		col := len(fixedHeaders) + len(retailers)
		f.SetCellValue(SheetName, cellName(col+1, row), p.LowestPrice())
		f.SetCellValue(SheetName, cellName(col+2, row), len(p.ListingIDs))
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 14.0
		if i == 1 {
			width = 45
		}
		f.SetColWidth(SheetName, col, col, width)
	}

	f.SetActiveSheet(index)
	return f, nil
}

// WriteXLSX writes the comparison workbook to w.
func WriteXLSX(w io.Writer, products []domain.CanonicalProduct) error {
	f, err := Workbook(products)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// SaveXLSX writes the comparison workbook to filename.
func SaveXLSX(filename string, products []domain.CanonicalProduct) error {
	f, err := Workbook(products)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func retailerColumns(products []domain.CanonicalProduct) []string {
	seen := make(map[string]struct{})
	for _, p := range products {
		for retailer := range p.PerRetailerPrices {
			seen[retailer] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for retailer := range seen {
		out = append(out, retailer)
	}
	sort.Strings(out)
	return out
}

func cellName(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
