package models

import "time"

type DamageReport struct {
	ID          int64      `json:"id"`
	BookingID   string     `json:"booking_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"` // pending, resolved
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
