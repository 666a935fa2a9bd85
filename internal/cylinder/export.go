package cylinder

import (
	"bytes"
	"context"
	"fmt"

	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const dueSheetName = "Due For Test"

var dueExportHeader = []string{
	"Cylinder Code",
	"Serial Number",
	"Barcode",
	"Family",
	"Gas",
	"Status",
	"Owner Type",
	"Last Test Date",
	"Next Test Date",
	"Days Until Due",
	"Overdue",
}

var dueExportWidths = []float64{18, 20, 20, 14, 12, 14, 12, 16, 16, 14, 10}

// ExportDueForTest renders the due list as an XLSX workbook.
func (s *Service) ExportDueForTest(ctx context.Context, scope auth.Scope, days int) ([]byte, error) {
	due, err := s.DueForTest(ctx, scope, days)
	if err != nil {
		return nil, err
	}
	return renderDueWorkbook(due)
}

func renderDueWorkbook(due []DueCylinder) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(dueSheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(dueExportHeader))
	for i, h := range dueExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(dueSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(dueExportHeader), 1)
	if err := f.SetCellStyle(dueSheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range dueExportWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(dueSheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, d := range due {
		row := []any{
			d.CylinderCode,
			deref(d.SerialNumber),
			deref(d.BarcodeNumber),
			d.CylinderFamilyCode,
			deref(d.GasContent),
			d.Status,
			string(d.OwnerType),
			dateCell(d.LastTestDate),
			dateCell(d.NextTestDate),
			d.DaysUntilDue,
			yesNo(d.Overdue),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(dueSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateCell(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
