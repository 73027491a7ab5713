package dispatch

import (
	"context"
	"time"

	"fieldhire/internal/domain"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// Detector finds overlapping commitments for a supplier. It is advisory:
// the coordinator re-runs it at commit time but a positive result only
// demands an explicit override, never a hard rejection, because suppliers
// may legitimately run several of their own resources in parallel.
type Detector struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewDetector(repo domain.Repository, logger *zerolog.Logger) *Detector {
	return &Detector{repo: repo, logger: logger}
}

// overlaps reports half-open interval overlap: [aStart, aEnd) intersects
// [bStart, bEnd). Touching boundaries do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// FindConflicts returns the supplier's active bookings on the date whose
// windows overlap the proposed one. The excluded booking id lets accept-time
// checks skip the booking being accepted.
func (d *Detector) FindConflicts(ctx context.Context, supplierID string, date time.Time, startMinute, durationMinutes int, excludeBookingID string) ([]*models.Booking, error) {
	existing, err := d.repo.GetActiveSupplierBookings(ctx, supplierID, date)
	if err != nil {
		return nil, err
	}

	end := startMinute + durationMinutes
	var conflicts []*models.Booking
	for _, b := range existing {
		if b.ID == excludeBookingID {
			continue
		}
		if overlaps(startMinute, end, b.StartMinute, b.EndMinute()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

// HasConflict is the boolean form of FindConflicts.
func (d *Detector) HasConflict(ctx context.Context, supplierID string, date time.Time, startMinute, durationMinutes int) (bool, error) {
	conflicts, err := d.FindConflicts(ctx, supplierID, date, startMinute, durationMinutes, "")
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
