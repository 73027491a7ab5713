package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"fieldhire/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentExclusiveClaim(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	booking := newBooking(models.StatusSearching)
	require.NoError(t, db.CreateBooking(ctx, booking))

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			// Every racer read version 1 before racing.
			results <- db.ClaimExclusiveWithVersion(ctx, booking.ID, 1,
				"supplier", "resource", false, models.StatusConfirmed)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	lostCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrConcurrentModification):
			lostCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount, "exactly one claim must win")
	assert.Equal(t, numGoroutines-1, lostCount, "all other claims must lose the race")

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestConcurrentAllocationConservesQuantity(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "allocation.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	const requested = 10
	booking := newBooking(models.StatusSearching)
	booking.Quantity = requested
	booking.RemainingQuantity = requested
	booking.AllowMultipleSuppliers = true
	require.NoError(t, db.CreateBooking(ctx, booking))

	const numGoroutines = 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			// Each supplier tries to take 3 units; most attempts must lose
			// once the quantity runs out.
			_, _ = db.AllocateWithLock(ctx, &models.Allocation{
				BookingID:  booking.ID,
				SupplierID: "supplier",
				ResourceID: "resource",
				Quantity:   3,
			})
		}(i)
	}

	wg.Wait()

	total, err := db.GetAllocatedTotal(ctx, booking.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, total, int64(requested), "allocations must never exceed the requested quantity")

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, total, int64(requested)-got.RemainingQuantity,
		"allocated total and remaining quantity must account for the full request")
	if got.RemainingQuantity == 0 {
		assert.Equal(t, models.StatusConfirmed, got.Status)
	} else {
		assert.Equal(t, models.StatusSearching, got.Status)
	}
}
