package dispatch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"fieldhire/internal/domain"
	"fieldhire/internal/events"
	"fieldhire/internal/metrics"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// transitions is the full forward state graph. Terminal states have no
// entries; cancel and expire edges are handled separately because they fan
// in from many states.
var transitions = map[string][]string{
	models.StatusSearching:           {models.StatusPendingConfirmation, models.StatusAwaitingOperator, models.StatusConfirmed},
	models.StatusPendingConfirmation: {models.StatusSearching, models.StatusAwaitingOperator, models.StatusConfirmed},
	models.StatusAwaitingOperator:    {models.StatusConfirmed},
	models.StatusConfirmed:           {models.StatusArrived},
	models.StatusArrived:             {models.StatusInProcess},
	models.StatusInProcess:           {models.StatusPendingPayment},
	models.StatusPendingPayment:      {models.StatusCompleted},
}

// CanTransition reports whether from→to is a legal forward edge.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether a booking in the given state may be cancelled.
func CanCancel(status string) bool {
	switch status {
	case models.StatusCompleted, models.StatusCancelled, models.StatusExpired:
		return false
	}
	return true
}

// Lifecycle owns the canonical status of each booking past acceptance and
// validates every transition before committing it with a compare-and-set.
type Lifecycle struct {
	repo     domain.Repository
	index    domain.OfferIndex
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewLifecycle(repo domain.Repository, index domain.OfferIndex, eventBus domain.EventPublisher, logger *zerolog.Logger) *Lifecycle {
	return &Lifecycle{repo: repo, index: index, eventBus: eventBus, logger: logger}
}

// Arrive marks the supplier on site and issues the pickup verification code
// the requester uses to release the equipment.
func (l *Lifecycle) Arrive(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(booking.Status, models.StatusArrived) {
		return nil, ErrInvalidTransition
	}

	otp, err := generateOTP(models.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}
	if err := l.repo.SetArrivedWithVersion(ctx, booking.ID, booking.Version, otp); err != nil {
		return nil, err
	}
	booking.Status = models.StatusArrived
	booking.OTPCode = otp
	booking.Version++

	enqueueNotification(ctx, l.repo, l.logger, booking.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Supplier arrived for booking %s; verification code %s", booking.ID, otp), booking.ID)
	return booking, nil
}

// StartWork moves an arrived booking into process. When a verification code
// was issued it must match.
func (l *Lifecycle) StartWork(ctx context.Context, bookingID, otpCode string) (*models.Booking, error) {
	booking, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(booking.Status, models.StatusInProcess) {
		return nil, ErrInvalidTransition
	}
	if booking.OTPCode != "" && booking.OTPCode != otpCode {
		return nil, errors.New("verification code mismatch")
	}

	if err := l.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusInProcess); err != nil {
		return nil, err
	}
	booking.Status = models.StatusInProcess
	booking.Version++
	return booking, nil
}

// Complete is the explicit completion action: work is done, payment is not.
// Time elapse alone never completes a booking.
func (l *Lifecycle) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(booking.Status, models.StatusPendingPayment) {
		return nil, ErrInvalidTransition
	}

	if err := l.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusPendingPayment); err != nil {
		return nil, err
	}
	booking.Status = models.StatusPendingPayment
	booking.Version++

	enqueueNotification(ctx, l.repo, l.logger, booking.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Booking %s completed, payment pending", booking.ID), booking.ID)
	return booking, nil
}

// FinalizePayment settles a completed job and freezes the booking.
func (l *Lifecycle) FinalizePayment(ctx context.Context, bookingID string, price float64) (*models.Booking, error) {
	booking, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(booking.Status, models.StatusCompleted) {
		return nil, ErrInvalidTransition
	}

	if err := l.repo.FinalizePaymentWithVersion(ctx, booking.ID, booking.Version, price); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCompleted
	booking.FinalPrice = price
	booking.Version++

	l.publish(events.EventBookingCompleted, booking, "farmer")
	enqueueNotification(ctx, l.repo, l.logger, booking.SupplierID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Booking %s paid and closed", booking.ID), booking.ID)
	return booking, nil
}

// Cancel is immediate and irrevocable. A reason is mandatory; cancellations
// after acceptance additionally notify the committed supplier.
func (l *Lifecycle) Cancel(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	if reason == "" {
		return nil, errors.New("cancellation reason is required")
	}

	booking, err := l.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanCancel(booking.Status) {
		return nil, ErrInvalidTransition
	}

	accepted := booking.SupplierID != "" && booking.Status != models.StatusPendingConfirmation
	if err := l.repo.CancelBookingWithVersion(ctx, booking.ID, booking.Version, reason); err != nil {
		return nil, err
	}
	wasOpen := booking.Status == models.StatusSearching
	booking.Status = models.StatusCancelled
	booking.CancelReason = reason
	booking.Version++

	if wasOpen {
		if err := l.index.Remove(ctx, booking.Category, booking.Purpose, booking.Date, booking.ID); err != nil {
			l.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("offer index remove failed")
		}
	}

	l.publish(events.EventBookingCancelled, booking, "farmer")
	if accepted {
		enqueueNotification(ctx, l.repo, l.logger, booking.SupplierID, models.NotifyCategoryOutcome,
			fmt.Sprintf("Booking %s was cancelled: %s", booking.ID, reason), booking.ID)
	}
	enqueueNotification(ctx, l.repo, l.logger, booking.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Booking %s cancelled", booking.ID), booking.ID)
	return booking, nil
}

// Sweep expires unaccepted bookings whose window has fully elapsed. It runs
// periodically; visibility reads apply the same check so nothing depends on
// sweep timing for correctness.
func (l *Lifecycle) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := l.repo.ExpireElapsed(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, b := range expired {
		if err := l.index.Remove(ctx, b.Category, b.Purpose, b.Date, b.ID); err != nil {
			l.logger.Error().Err(err).Str("booking_id", b.ID).Msg("offer index remove failed")
		}
		l.publish(events.EventBookingExpired, b, "system")
		enqueueNotification(ctx, l.repo, l.logger, b.FarmerID, models.NotifyCategoryOutcome,
			fmt.Sprintf("Request %s expired without acceptance", b.ID), b.ID)
	}
	if len(expired) > 0 {
		metrics.AddExpired(len(expired))
		l.logger.Info().Int("count", len(expired)).Msg("expired elapsed bookings")
	}
	return len(expired), nil
}

func (l *Lifecycle) publish(eventType string, b *models.Booking, changedBy string) {
	if l.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:  b.ID,
		FarmerID:   b.FarmerID,
		SupplierID: b.SupplierID,
		ResourceID: b.ResourceID,
		Category:   b.Category,
		Purpose:    b.Purpose,
		Status:     b.Status,
		Date:       b.Date,
		Quantity:   b.Quantity,
		ChangedBy:  changedBy,
	}
	if err := l.eventBus.PublishJSON(eventType, payload); err != nil {
		l.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}

const otpDigits = "0123456789"

func generateOTP(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = otpDigits[int(buf[i])%len(otpDigits)]
	}
	return string(buf), nil
}
