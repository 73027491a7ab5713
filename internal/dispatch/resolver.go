package dispatch

import (
	"context"
	"errors"
	"fmt"

	"fieldhire/internal/domain"
	"fieldhire/internal/events"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// disputeEligible lists the states in which a commitment exists to dispute.
// A request that was never accepted has no counterparty.
var disputeEligible = map[string]bool{
	models.StatusConfirmed:      true,
	models.StatusArrived:        true,
	models.StatusInProcess:      true,
	models.StatusPendingPayment: true,
	models.StatusCompleted:      true,
}

// Resolver handles disputes and damage claims. Disputes annotate a booking
// without moving its status; the resolution track runs alongside the
// lifecycle, not through it.
type Resolver struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewResolver(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, eventBus: eventBus, logger: logger}
}

// RaiseDispute flags a booking for admin review. Either party may raise it,
// but only once a supplier committed to the job.
func (r *Resolver) RaiseDispute(ctx context.Context, bookingID, raisedBy string) (*models.Booking, error) {
	booking, err := r.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !disputeEligible[booking.Status] {
		return nil, ErrInvalidTransition
	}
	if booking.DisputeRaised && !booking.DisputeResolved {
		return booking, nil
	}

	if err := r.repo.SetDisputeRaised(ctx, booking.ID); err != nil {
		return nil, err
	}
	booking.DisputeRaised = true
	booking.DisputeResolved = false

	r.publish(events.EventDisputeRaised, booking, raisedBy)
	enqueueNotification(ctx, r.repo, r.logger, models.NotifyTargetAdmin, models.NotifyCategoryDispute,
		fmt.Sprintf("Dispute raised on booking %s by %s", booking.ID, raisedBy), booking.ID)
	return booking, nil
}

// ResolveDispute clears a dispute flag. Admin only; resolving an already
// resolved dispute is a no-op.
func (r *Resolver) ResolveDispute(ctx context.Context, bookingID, resolvedBy string) (*models.Booking, error) {
	booking, err := r.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.DisputeRaised {
		return nil, errors.New("no dispute raised on this booking")
	}
	if booking.DisputeResolved {
		return booking, nil
	}

	if err := r.repo.SetDisputeResolved(ctx, booking.ID); err != nil {
		return nil, err
	}
	booking.DisputeResolved = true

	r.publish(events.EventDisputeResolved, booking, resolvedBy)
	enqueueNotification(ctx, r.repo, r.logger, booking.FarmerID, models.NotifyCategoryDispute,
		fmt.Sprintf("Dispute on booking %s resolved", booking.ID), booking.ID)
	if booking.SupplierID != "" {
		enqueueNotification(ctx, r.repo, r.logger, booking.SupplierID, models.NotifyCategoryDispute,
			fmt.Sprintf("Dispute on booking %s resolved", booking.ID), booking.ID)
	}
	return booking, nil
}

// ReportDamage records a damage claim against a booking and flags the
// booking. Multiple reports per booking are allowed; each is tracked as its
// own record.
func (r *Resolver) ReportDamage(ctx context.Context, bookingID, reportedBy, description string) (*models.DamageReport, error) {
	if description == "" {
		return nil, errors.New("damage description is required")
	}
	booking, err := r.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !disputeEligible[booking.Status] {
		return nil, ErrInvalidTransition
	}

	report := &models.DamageReport{
		BookingID:   booking.ID,
		Description: description,
		Status:      models.DamagePending,
	}
	if err := r.repo.CreateDamageReport(ctx, report); err != nil {
		return nil, err
	}
	if err := r.repo.SetDamageReported(ctx, booking.ID); err != nil {
		return nil, err
	}
	booking.DamageReported = true

	r.publish(events.EventDamageReported, booking, reportedBy)
	enqueueNotification(ctx, r.repo, r.logger, models.NotifyTargetAdmin, models.NotifyCategoryDamage,
		fmt.Sprintf("Damage reported on booking %s by %s: %s", booking.ID, reportedBy, description), booking.ID)
	return report, nil
}

// ResolveDamageClaim closes a damage report. Admin only; resolving twice is
// a no-op and reports the already resolved record.
func (r *Resolver) ResolveDamageClaim(ctx context.Context, reportID int64, resolvedBy string) (*models.DamageReport, error) {
	report, err := r.repo.GetDamageReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == models.DamageResolved {
		return report, nil
	}

	if err := r.repo.ResolveDamageReport(ctx, reportID); err != nil {
		return nil, err
	}
	report, err = r.repo.GetDamageReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	booking, err := r.repo.GetBooking(ctx, report.BookingID)
	if err == nil {
		r.publish(events.EventDamageResolved, booking, resolvedBy)
		enqueueNotification(ctx, r.repo, r.logger, booking.FarmerID, models.NotifyCategoryDamage,
			fmt.Sprintf("Damage claim %d on booking %s resolved", report.ID, booking.ID), booking.ID)
		if booking.SupplierID != "" {
			enqueueNotification(ctx, r.repo, r.logger, booking.SupplierID, models.NotifyCategoryDamage,
				fmt.Sprintf("Damage claim %d on booking %s resolved", report.ID, booking.ID), booking.ID)
		}
	}
	return report, nil
}

func (r *Resolver) publish(eventType string, b *models.Booking, changedBy string) {
	if r.eventBus == nil {
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
		ChangedBy:  changedBy,
	}
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}
