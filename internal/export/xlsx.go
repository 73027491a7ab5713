package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldhire/internal/domain"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const ledgerSheet = "Bookings"

// Exporter writes booking ledgers as Excel workbooks for offline review.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger *zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{repo: repo, path: path, logger: logger}
}

// ExportBookings creates an Excel file with one row per booking in the date
// range and returns the file path.
func (e *Exporter) ExportBookings(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.repo.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ledgerSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(ledgerSheet, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headers := []string{
		"ID", "Date", "Window", "Category", "Purpose", "Farmer", "Supplier",
		"Resource", "Quantity", "Status", "Price", "Dispute", "Damage",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(ledgerSheet, cell, header)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 2)
	_ = f.SetCellStyle(ledgerSheet, "A2", lastHeader, headerStyle)

	for i, b := range bookings {
		row := i + 3
		window := fmt.Sprintf("%s-%s", models.FormatClock(b.StartMinute), models.FormatClock(b.EndMinute()))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("A%d", row), b.ID)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("B%d", row), b.Date.Format("02.01.2006"))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("C%d", row), window)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("D%d", row), b.Category)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("E%d", row), b.Purpose)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("F%d", row), b.FarmerID)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("G%d", row), b.SupplierID)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("H%d", row), b.ResourceID)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("I%d", row), b.Quantity)
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("J%d", row), b.Status)
		if b.FinalPrice > 0 {
			_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("K%d", row), b.FinalPrice)
		}
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("L%d", row), boolToYesNo(b.DisputeRaised))
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("M%d", row), boolToYesNo(b.DamageReported))

		if styleID, err := e.statusStyle(f, b.Status); err == nil {
			_ = f.SetCellStyle(ledgerSheet, fmt.Sprintf("J%d", row), fmt.Sprintf("J%d", row), styleID)
		}
	}

	_ = f.SetColWidth(ledgerSheet, "A", "A", 38)
	_ = f.SetColWidth(ledgerSheet, "B", "M", 16)

	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.MergeCell(ledgerSheet, "A1", lastCol)
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(ledgerSheet, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusConfirmed, models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusCancelled, models.StatusExpired:
		color = "#FFC7CE"
	case models.StatusSearching, models.StatusPendingConfirmation, models.StatusAwaitingOperator:
		color = "#FFEB9C"
	default:
		color = "#FFFFFF"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
