package models

import "time"

// NotificationTask is a queued delivery to a party or the admin channel.
// Delivery is fire-and-forget from the engine's point of view: tasks are
// enqueued in the same process that committed the state change and a worker
// drains them with retries.
type NotificationTask struct {
	ID          int64      `json:"id"`
	TargetID    string     `json:"target_id"` // party id or "admin"
	Category    string     `json:"category"`
	Message     string     `json:"message"`
	BookingID   string     `json:"booking_id,omitempty"`
	Status      string     `json:"status"` // pending, retry, delivered, failed
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

const (
	NotifyPending   = "pending"
	NotifyRetry     = "retry"
	NotifyDelivered = "delivered"
	NotifyFailed    = "failed"
)

const (
	NotifyCategoryRequest  = "booking_request"
	NotifyCategoryOutcome  = "booking_outcome"
	NotifyCategoryConflict = "conflict_override"
	NotifyCategoryDispute  = "dispute"
	NotifyCategoryDamage   = "damage"
)

// NotifyTargetAdmin routes a task to the oversight channel instead of a
// specific party.
const NotifyTargetAdmin = "admin"
