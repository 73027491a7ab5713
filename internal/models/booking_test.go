package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"08:00", 480},
		{"8:30", 510},
		{"23:59", 1439},
		{" 12:00 ", 720},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"", "12", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, err := ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "08:00", FormatClock(480))
	assert.Equal(t, "23:59", FormatClock(1439))
	assert.Equal(t, "00:00", FormatClock(-5))
}

func TestBookingWindow(t *testing.T) {
	loc := time.Local
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, loc)
	b := &Booking{Date: date, StartMinute: 480, DurationMinutes: 240}

	assert.Equal(t, 720, b.EndMinute())

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before the window", time.Date(2026, 8, 20, 7, 0, 0, 0, loc), false},
		{"inside the window", time.Date(2026, 8, 20, 10, 0, 0, 0, loc), false},
		{"exactly at the end", time.Date(2026, 8, 20, 12, 0, 0, 0, loc), true},
		{"later that day", time.Date(2026, 8, 20, 15, 0, 0, 0, loc), true},
		{"next day", time.Date(2026, 8, 21, 6, 0, 0, 0, loc), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.WindowElapsed(tt.now))
		})
	}
}

func TestBookingPredicates(t *testing.T) {
	assert.True(t, (&Booking{AllowMultipleSuppliers: true, Quantity: 5}).IsSplittable())
	assert.False(t, (&Booking{AllowMultipleSuppliers: true}).IsSplittable(), "no quantity, nothing to split")
	assert.False(t, (&Booking{Quantity: 5}).IsSplittable())

	for _, status := range []string{StatusCompleted, StatusCancelled, StatusExpired} {
		b := &Booking{Status: status}
		assert.True(t, b.IsTerminal(), status)
		assert.False(t, b.IsActive(), status)
	}
	for _, status := range []string{StatusSearching, StatusConfirmed, StatusInProcess} {
		b := &Booking{Status: status}
		assert.False(t, b.IsTerminal(), status)
		assert.True(t, b.IsActive(), status)
	}
}

func TestResourcePredicates(t *testing.T) {
	r := &Resource{
		Available:      true,
		ApprovalStatus: ApprovalApproved,
		PurposeRates:   map[string]float64{"plowing": 120},
	}
	assert.True(t, r.IsDispatchable())
	assert.True(t, r.SupportsPurpose("plowing"))
	assert.False(t, r.SupportsPurpose("harvesting"))
	assert.Equal(t, 120.0, r.RateFor("plowing"))
	assert.Zero(t, r.RateFor("harvesting"))

	r.Available = false
	assert.False(t, r.IsDispatchable())

	r.Available = true
	r.ApprovalStatus = ApprovalPending
	assert.False(t, r.IsDispatchable())
}
