// Package export renders chore schedules as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dukerupert/tenantry/internal/model"
)

// ContentType is the MIME type of the files ScheduleXLSX produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var scheduleHeader = []string{"Due Date", "Day", "Chore", "Assigned To", "Status", "Completed At", "Notes"}

var scheduleWidths = []float64{12, 11, 24, 20, 11, 20, 40}

// FileName returns the download name for a unit's weekly schedule.
func FileName(unit *model.Unit, weekID string) string {
	return fmt.Sprintf("chores-%d-%s.xlsx", unit.ID, weekID)
}

// ScheduleXLSX writes one row per completion, sorted as given, to a sheet
// named after the week. Completion times are shown in the unit's timezone.
func ScheduleXLSX(unit *model.Unit, view *model.ScheduleView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := view.WeekID
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &scheduleHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(scheduleHeader), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range scheduleWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	loc := unit.Location()
	for i, c := range view.Completions {
		row := []any{c.DueDate, weekday(c.DueDate), c.ChoreName, c.AssigneeName, c.Status, "", c.Notes}
		if c.CompletedAt != nil {
			row[5] = c.CompletedAt.In(loc).Format("2006-01-02 15:04")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func weekday(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return d.Weekday().String()
}
