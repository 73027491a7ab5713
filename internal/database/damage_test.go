package database

import (
	"context"
	"testing"

	"fieldhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDamageReportLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	booking := newBooking(models.StatusConfirmed)
	require.NoError(t, db.CreateBooking(ctx, booking))

	report := &models.DamageReport{
		BookingID:   booking.ID,
		Description: "broken hitch",
		Status:      models.DamagePending,
	}
	require.NoError(t, db.CreateDamageReport(ctx, report))
	require.NotZero(t, report.ID)

	got, err := db.GetDamageReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.BookingID)
	assert.Equal(t, models.DamagePending, got.Status)
	assert.Nil(t, got.ResolvedAt)

	require.NoError(t, db.ResolveDamageReport(ctx, report.ID))
	got, err = db.GetDamageReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DamageResolved, got.Status)
	assert.NotNil(t, got.ResolvedAt)

	// Resolving again is a no-op, not an error.
	require.NoError(t, db.ResolveDamageReport(ctx, report.ID))
}

func TestDamageReportNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetDamageReport(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	err = db.ResolveDamageReport(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
