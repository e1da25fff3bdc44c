package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Datos"

// XLSXExporter renders datasets into a single sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes an optional merged title row followed by a styled header row.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	row := 1
	lastCol, _ := excelize.ColumnNumberToName(len(data.Headers))
	if data.Title != "" {
		titleStyle, _ := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		_ = f.SetCellValue(xlsxSheet, "A1", data.Title)
		_ = f.MergeCell(xlsxSheet, "A1", fmt.Sprintf("%s1", lastCol))
		_ = f.SetCellStyle(xlsxSheet, "A1", "A1", titleStyle)
		row = 3
	}

	for i, h := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(xlsxSheet, col, col, columnWidth(h, data.Rows))
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
	_ = f.SetCellStyle(xlsxSheet, first, last, headerStyle)

	for _, r := range data.Rows {
		row++
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := data.record(r)
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &out); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidth(header string, rows []map[string]string) float64 {
	width := len([]rune(header))
	for _, r := range rows {
		if n := len([]rune(r[header])); n > width {
			width = n
		}
	}
	if width > 60 {
		width = 60
	}
	return float64(width + 2)
}
