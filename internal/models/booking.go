package models

import "time"

type Booking struct {
	ID                     string    `json:"id"`
	FarmerID               string    `json:"farmer_id"`
	SupplierID             string    `json:"supplier_id,omitempty"`
	ResourceID             string    `json:"resource_id,omitempty"`
	Category               string    `json:"category"`
	Purpose                string    `json:"purpose"`
	Quantity               int64     `json:"quantity,omitempty"`
	RemainingQuantity      int64     `json:"remaining_quantity,omitempty"`
	AllowMultipleSuppliers bool      `json:"allow_multiple_suppliers"`
	PreferredModel         string    `json:"preferred_model,omitempty"`
	OperatorRequired       bool      `json:"operator_required"`
	OperateSelf            bool      `json:"operate_self"`
	ParentID               string    `json:"parent_id,omitempty"`
	Date                   time.Time `json:"date"`
	StartMinute            int       `json:"start_minute"`
	DurationMinutes        int       `json:"duration_minutes"`
	Status                 string    `json:"status"`
	FinalPrice             float64   `json:"final_price,omitempty"`
	OTPCode                string    `json:"otp_code,omitempty"`
	DisputeRaised          bool      `json:"dispute_raised"`
	DisputeResolved        bool      `json:"dispute_resolved"`
	DamageReported         bool      `json:"damage_reported"`
	CancelReason           string    `json:"cancel_reason,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
	Version                int64     `json:"version"`
}

// EndMinute returns the exclusive end of the booking window in minutes
// from midnight.
func (b *Booking) EndMinute() int {
	return b.StartMinute + b.DurationMinutes
}

// IsTerminal reports whether the booking reached a state with no exits.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsActive reports whether the booking still counts as a commitment for
// conflict detection purposes.
func (b *Booking) IsActive() bool {
	return !b.IsTerminal()
}

// IsSplittable reports whether the booking may be fulfilled by several
// suppliers in sub-quantities.
func (b *Booking) IsSplittable() bool {
	return b.AllowMultipleSuppliers && b.Quantity > 0
}

// WindowElapsed reports whether the scheduled window has fully passed
// relative to now.
func (b *Booking) WindowElapsed(now time.Time) bool {
	y, m, d := b.Date.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).
		Add(time.Duration(b.EndMinute()) * time.Minute)
	return !now.Before(end)
}

// Allocation records one partial accept of a splittable booking.
type Allocation struct {
	ID         int64     `json:"id"`
	BookingID  string    `json:"booking_id"`
	SupplierID string    `json:"supplier_id"`
	ResourceID string    `json:"resource_id"`
	Quantity   int64     `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}
