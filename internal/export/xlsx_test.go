package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldhire/internal/database"
	"fieldhire/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportBookings(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(filepath.Join(dir, "export.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		ID:              uuid.NewString(),
		FarmerID:        "farmer-1",
		SupplierID:      "supplier-1",
		ResourceID:      "tractor-1",
		Category:        "Tractor",
		Purpose:         "plowing",
		Quantity:        1,
		Date:            date,
		StartMinute:     8 * 60,
		DurationMinutes: 240,
		Status:          models.StatusConfirmed,
	}
	require.NoError(t, db.CreateBooking(ctx, booking))

	exporter := NewExporter(db, filepath.Join(dir, "exports"), &logger)
	path, err := exporter.ExportBookings(ctx, date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.GetCellValue(ledgerSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, booking.ID, id)

	window, err := f.GetCellValue(ledgerSheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "08:00-12:00", window)

	status, err := f.GetCellValue(ledgerSheet, "J3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, status)
}

func TestExportBookingsEmptyRange(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(filepath.Join(dir, "export.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exporter := NewExporter(db, filepath.Join(dir, "exports"), &logger)
	path, err := exporter.ExportBookings(context.Background(),
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
