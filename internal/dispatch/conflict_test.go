package dispatch

import (
	"context"
	"testing"

	"fieldhire/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     int
		want                           bool
	}{
		{"identical windows", 480, 720, 480, 720, true},
		{"partial overlap", 480, 720, 600, 900, true},
		{"containment", 480, 720, 540, 600, true},
		{"touching end to start", 480, 720, 720, 900, false},
		{"touching start to end", 480, 720, 300, 480, false},
		{"disjoint", 480, 720, 900, 960, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			// Overlap is symmetric.
			assert.Equal(t, tt.want, overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestFindConflicts(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	date := tomorrow()

	commitment := &models.Booking{
		ID:              uuid.NewString(),
		FarmerID:        "farmer-1",
		SupplierID:      "supplier-1",
		Category:        "Tractor",
		Purpose:         "plowing",
		Date:            date,
		StartMinute:     480,
		DurationMinutes: 240,
		Status:          models.StatusConfirmed,
	}
	require.NoError(t, eng.db.CreateBooking(ctx, commitment))

	t.Run("overlapping window is reported", func(t *testing.T) {
		conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date, 600, 120, "")
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, commitment.ID, conflicts[0].ID)
	})

	t.Run("adjacent window is clear", func(t *testing.T) {
		conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date, 720, 120, "")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("other supplier is clear", func(t *testing.T) {
		conflicts, err := eng.detector.FindConflicts(ctx, "supplier-2", date, 480, 240, "")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("other date is clear", func(t *testing.T) {
		conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date.AddDate(0, 0, 1), 480, 240, "")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("excluded booking is skipped", func(t *testing.T) {
		conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date, 480, 240, commitment.ID)
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("has conflict boolean form", func(t *testing.T) {
		ok, err := eng.detector.HasConflict(ctx, "supplier-1", date, 600, 60)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestFindConflictsIgnoresTerminal(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	date := tomorrow()

	cancelled := &models.Booking{
		ID:              uuid.NewString(),
		FarmerID:        "farmer-1",
		SupplierID:      "supplier-1",
		Category:        "Tractor",
		Purpose:         "plowing",
		Date:            date,
		StartMinute:     480,
		DurationMinutes: 240,
		Status:          models.StatusCancelled,
	}
	require.NoError(t, eng.db.CreateBooking(ctx, cancelled))

	conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date, 480, 240, "")
	require.NoError(t, err)
	assert.Empty(t, conflicts, "a cancelled booking is not a commitment")
}

func TestFindConflictsSeesAllocations(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	date := tomorrow()

	booking := &models.Booking{
		ID:                     uuid.NewString(),
		FarmerID:               "farmer-1",
		Category:               "Workers",
		Purpose:                "weeding",
		Quantity:               10,
		RemainingQuantity:      10,
		AllowMultipleSuppliers: true,
		Date:                   date,
		StartMinute:            480,
		DurationMinutes:        240,
		Status:                 models.StatusSearching,
	}
	require.NoError(t, eng.db.CreateBooking(ctx, booking))

	_, err := eng.db.AllocateWithLock(ctx, &models.Allocation{
		BookingID:  booking.ID,
		SupplierID: "supplier-1",
		ResourceID: "crew-1",
		Quantity:   4,
	})
	require.NoError(t, err)

	// A partial commitment binds the supplier's window just like an
	// exclusive one even though the booking record names no supplier.
	conflicts, err := eng.detector.FindConflicts(ctx, "supplier-1", date, 600, 60, "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, booking.ID, conflicts[0].ID)
}
