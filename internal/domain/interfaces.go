package domain

import (
	"context"
	"time"

	"fieldhire/internal/models"
)

type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingsByIDs(ctx context.Context, ids []string) ([]*models.Booking, error)
	ListOpenBookings(ctx context.Context) ([]*models.Booking, error)
	GetFarmerBookings(ctx context.Context, farmerID string) ([]*models.Booking, error)
	GetSupplierBookings(ctx context.Context, supplierID string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetActiveSupplierBookings(ctx context.Context, supplierID string, date time.Time) ([]*models.Booking, error)

	UpdateBookingStatusWithVersion(ctx context.Context, id string, version int64, status string) error
	ClaimExclusiveWithVersion(ctx context.Context, id string, version int64, supplierID, resourceID string, operateSelf bool, status string) error
	AllocateWithLock(ctx context.Context, alloc *models.Allocation) (remaining int64, err error)
	ReleaseDirectWithVersion(ctx context.Context, id string, version int64) error
	CancelBookingWithVersion(ctx context.Context, id string, version int64, reason string) error
	SetArrivedWithVersion(ctx context.Context, id string, version int64, otpCode string) error
	FinalizePaymentWithVersion(ctx context.Context, id string, version int64, price float64) error
	ExpireElapsed(ctx context.Context, now time.Time) ([]*models.Booking, error)

	SetDisputeRaised(ctx context.Context, id string) error
	SetDisputeResolved(ctx context.Context, id string) error
	SetDamageReported(ctx context.Context, id string) error

	GetAllocations(ctx context.Context, bookingID string) ([]*models.Allocation, error)

	CreateDamageReport(ctx context.Context, report *models.DamageReport) error
	GetDamageReport(ctx context.Context, id int64) (*models.DamageReport, error)
	ResolveDamageReport(ctx context.Context, id int64) error

	SetResources(resources []*models.Resource)
	GetResource(ctx context.Context, id string) (*models.Resource, error)
	ListApprovedResources(ctx context.Context, category string) ([]*models.Resource, error)
	ListSupplierResources(ctx context.Context, supplierID string) ([]*models.Resource, error)

	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// OfferIndex tracks which open broadcast bookings are visible for a
// category/purpose/date triple, so routing does not rescan the bookings
// table per request.
type OfferIndex interface {
	Add(ctx context.Context, category, purpose string, date time.Time, bookingID string) error
	Remove(ctx context.Context, category, purpose string, date time.Time, bookingID string) error
	List(ctx context.Context, category, purpose string, date time.Time) ([]string, error)
}

// Notifier delivers a single message to a party or the admin channel.
// Delivery failures must never affect booking state.
type Notifier interface {
	Notify(ctx context.Context, targetID, category, message string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
