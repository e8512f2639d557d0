package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mn-address-parser/app/services"
	"github.com/xuri/excelize/v2"
)

const resultSheet = "Parsed Addresses"

var resultHeaders = []string{
	"Raw", "Normalized", "District", "Khoroo", "Building",
	"Block", "Door", "Confidence", "Pattern", "Trusted",
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// readXLSX returns the non-blank cells below the header row of the first
// sheet. column selects the header to read (case-insensitive); empty means
// the first column.
func readXLSX(path, column string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in %s", path)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := 0
	if column != "" {
		col = -1
		for i, header := range rows[0] {
			if strings.EqualFold(strings.TrimSpace(header), column) {
				col = i
				break
			}
		}
		if col == -1 {
			return nil, fmt.Errorf("column %q not found in sheet %q", column, sheetName)
		}
	}

	var addresses []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if cell := strings.TrimSpace(row[col]); cell != "" {
			addresses = append(addresses, cell)
		}
	}
	return addresses, nil
}

// writeXLSX saves outcomes as one styled sheet and returns the row count.
func writeXLSX(path string, outcomes []*services.ParseOutcome, trustedOnly bool) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1; reuse it so results are the first sheet.
	if err := f.SetSheetName(f.GetSheetName(0), resultSheet); err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range resultHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(resultSheet, cell, header); err != nil {
			return 0, err
		}
		if err := f.SetCellStyle(resultSheet, cell, cell, headerStyle); err != nil {
			return 0, err
		}
	}

	row := 2
	for _, o := range outcomes {
		if trustedOnly && !o.Trusted {
			continue
		}
		r := o.Result
		values := []interface{}{
			o.Raw, o.Normalized, r.District, r.SubDistrictID, r.Building,
			r.Block, r.Door, r.Confidence, r.MatchedPattern, o.Trusted,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(resultSheet, cell, v); err != nil {
				return row - 2, err
			}
		}
		row++
	}

	for i := range resultHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := 12.0
		if i < 2 {
			width = 40
		}
		if err := f.SetColWidth(resultSheet, col, col, width); err != nil {
			return row - 2, err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return row - 2, fmt.Errorf("failed to save Excel file: %w", err)
	}
	return row - 2, nil
}
