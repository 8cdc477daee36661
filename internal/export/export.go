package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"homehelper/internal/models"
	"homehelper/internal/views"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{"ID", "Service", "Customer", "Provider", "Requested", "Status", "Amount"}

// Options controls one workbook export.
type Options struct {
	Dir      string
	Title    string
	Location *time.Location
	Now      time.Time
}

// WriteWorkbook builds an xlsx file from records and returns its path. The
// last row carries the completed spend of the exported records.
func WriteWorkbook(records []models.BookingRecord, opts Options) (string, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	title := opts.Title
	if title == "" {
		title = "Bookings"
	}
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s: %s", title, opts.Now.In(opts.Location).Format("02 Jan 2006 15:04")))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	writeHeaders(f)
	row := writeRows(f, records, opts.Location)
	writeSummary(f, row+1, views.CompletedSpend(records))

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	_ = f.SetColWidth(sheetName, "B", lastCol, 20)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s.xlsx", opts.Now.In(opts.Location).Format("2006-01-02_150405"))
	filePath := filepath.Join(opts.Dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func writeHeaders(f *excelize.File) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

// writeRows returns the last row written.
func writeRows(f *excelize.File, records []models.BookingRecord, loc *time.Location) int {
	row := 2
	for i := range records {
		rec := &records[i]
		row++
		requested := ""
		if rec.RequestedDateTime != nil {
			requested = rec.RequestedDateTime.In(loc).Format("02 Jan 2006 15:04")
		}
		values := []interface{}{
			rec.ID,
			rec.ServiceName,
			rec.CustomerName(),
			rec.ProviderName(),
			requested,
			rec.Status.Label(),
			rec.Amount(),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}
	return row
}

func writeSummary(f *excelize.File, row int, spend float64) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	label, _ := excelize.CoordinatesToCellName(len(headers)-1, row)
	value, _ := excelize.CoordinatesToCellName(len(headers), row)
	_ = f.SetCellValue(sheetName, label, "Completed total")
	_ = f.SetCellValue(sheetName, value, spend)
	_ = f.SetCellStyle(sheetName, label, value, style)
}
