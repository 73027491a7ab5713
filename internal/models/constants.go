package models

const (
	StatusSearching           = "searching"
	StatusPendingConfirmation = "pending_confirmation"
	StatusAwaitingOperator    = "awaiting_operator"
	StatusConfirmed           = "confirmed"
	StatusArrived             = "arrived"
	StatusInProcess           = "in_process"
	StatusPendingPayment      = "pending_payment"
	StatusCompleted           = "completed"
	StatusCancelled           = "cancelled"
	StatusExpired             = "expired"
)

const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
	ApprovalRejected = "rejected"
)

const (
	DamagePending  = "pending"
	DamageResolved = "resolved"
)

const (
	RoleFarmer   = "farmer"
	RoleSupplier = "supplier"
	RoleAdmin    = "admin"
)

// CategoryOperator is the category used for secondary operator dispatch
// cycles spawned by accepts that need a hired driver.
const CategoryOperator = "Operator/Driver"

const (
	// MinutesPerDay bounds start/duration validation.
	MinutesPerDay = 24 * 60

	// DefaultSweepInterval between expiry sweeps, seconds.
	DefaultSweepInterval = 60

	// DefaultMaxBookingDays limits how far ahead a request may be placed.
	DefaultMaxBookingDays = 365

	// OTPLength of the pickup verification code.
	OTPLength = 6

	// NotifyQueueBatch tasks claimed per worker poll.
	NotifyQueueBatch = 20

	// DefaultOfferIndexTTL seconds an offer index entry lives without refresh.
	DefaultOfferIndexTTL = 24 * 60 * 60
)
