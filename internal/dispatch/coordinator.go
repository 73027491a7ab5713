package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldhire/internal/database"
	"fieldhire/internal/domain"
	"fieldhire/internal/events"
	"fieldhire/internal/metrics"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// Coordinator arbitrates accept/reject actions against a booking. Exclusive
// accepts commit through a single compare-and-set so concurrent suppliers
// resolve to at most one winner; splittable accepts go through a serialized
// allocation transaction that conserves the requested quantity.
type Coordinator struct {
	repo     domain.Repository
	index    domain.OfferIndex
	detector *Detector
	router   *Router
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewCoordinator(repo domain.Repository, index domain.OfferIndex, detector *Detector, router *Router, eventBus domain.EventPublisher, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{
		repo:     repo,
		index:    index,
		detector: detector,
		router:   router,
		eventBus: eventBus,
		logger:   logger,
	}
}

type AcceptRequest struct {
	BookingID  string
	SupplierID string
	ResourceID string
	// Quantity requests a sub-allocation of a splittable booking; zero means
	// "as much as this resource can supply".
	Quantity int64
	// OperateSelf commits the accepting supplier as the operator when the
	// request requires one; otherwise a secondary operator dispatch cycle is
	// spawned.
	OperateSelf bool
	// ConfirmConflicts acknowledges a previously returned ConflictError and
	// commits anyway.
	ConfirmConflicts bool
}

type AcceptResult struct {
	Booking           *models.Booking   `json:"booking"`
	AllocatedQuantity int64             `json:"allocated_quantity,omitempty"`
	RemainingQuantity int64             `json:"remaining_quantity,omitempty"`
	OperatorRequested bool              `json:"operator_requested,omitempty"`
	OverrodeConflicts []*models.Booking `json:"overrode_conflicts,omitempty"`
}

const allocateRetries = 3

func (c *Coordinator) Accept(ctx context.Context, req *AcceptRequest) (*AcceptResult, error) {
	booking, err := c.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.StatusSearching, models.StatusPendingConfirmation, models.StatusAwaitingOperator:
	default:
		metrics.IncAccept("invalid_state")
		return nil, ErrInvalidTransition
	}

	// Direct requests are only acceptable by the supplier they target.
	if booking.Status == models.StatusPendingConfirmation && booking.SupplierID != req.SupplierID {
		metrics.IncAccept("invalid_state")
		return nil, ErrInvalidTransition
	}

	resource, err := c.repo.GetResource(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncAccept("resource_unavailable")
			return nil, ErrResourceUnavailable
		}
		return nil, err
	}
	if resource.SupplierID != req.SupplierID || !resource.IsDispatchable() ||
		resource.Category != booking.Category || !resource.SupportsPurpose(booking.Purpose) {
		metrics.IncAccept("resource_unavailable")
		return nil, ErrResourceUnavailable
	}

	// Authoritative conflict check. The speculative one ran when the offer
	// was listed, but the offer-to-accept window is open ended and the
	// supplier may have committed elsewhere in between.
	conflicts, err := c.detector.FindConflicts(ctx, req.SupplierID, booking.Date,
		booking.StartMinute, booking.DurationMinutes, booking.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && !req.ConfirmConflicts {
		metrics.IncAccept("conflict_warning")
		return nil, &ConflictError{Conflicts: conflicts}
	}

	var result *AcceptResult
	if booking.IsSplittable() && booking.Status == models.StatusSearching {
		result, err = c.acceptPartial(ctx, booking, resource, req)
	} else {
		result, err = c.acceptExclusive(ctx, booking, resource, req)
	}
	if err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		c.notifyConflictOverride(ctx, result.Booking, req.SupplierID, conflicts)
		result.OverrodeConflicts = conflicts
	}
	return result, nil
}

func (c *Coordinator) acceptExclusive(ctx context.Context, booking *models.Booking, resource *models.Resource, req *AcceptRequest) (*AcceptResult, error) {
	targetStatus := models.StatusConfirmed
	operatorRequested := false
	if booking.OperatorRequired && booking.Status != models.StatusAwaitingOperator && !req.OperateSelf {
		targetStatus = models.StatusAwaitingOperator
		operatorRequested = true
	}

	err := c.repo.ClaimExclusiveWithVersion(ctx, booking.ID, booking.Version,
		req.SupplierID, resource.ID, req.OperateSelf, targetStatus)
	if errors.Is(err, ErrConcurrentModification) {
		metrics.IncAccept("lost_race")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	metrics.IncAccept("accepted")

	wasBroadcast := booking.Status == models.StatusSearching
	booking.SupplierID = req.SupplierID
	booking.ResourceID = resource.ID
	booking.OperateSelf = req.OperateSelf
	booking.Status = targetStatus
	booking.Version++

	if wasBroadcast {
		c.router.removeFromIndex(ctx, booking)
		c.rejectRemainingOfferees(ctx, booking)
	}

	c.publish(events.EventBookingAccepted, booking, "supplier")
	enqueueNotification(ctx, c.repo, c.logger, booking.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Request %s accepted by supplier %s", booking.ID, req.SupplierID), booking.ID)

	if operatorRequested {
		c.spawnOperatorRequest(ctx, booking)
	}
	if booking.ParentID != "" && booking.Status == models.StatusConfirmed {
		c.confirmParent(ctx, booking.ParentID)
	}

	return &AcceptResult{Booking: booking, OperatorRequested: operatorRequested}, nil
}

// confirmParent advances a parent booking out of awaiting_operator once its
// operator sub-request is covered.
func (c *Coordinator) confirmParent(ctx context.Context, parentID string) {
	parent, err := c.repo.GetBooking(ctx, parentID)
	if err != nil {
		c.logger.Error().Err(err).Str("booking_id", parentID).Msg("parent lookup failed")
		return
	}
	if parent.Status != models.StatusAwaitingOperator {
		return
	}
	if err := c.repo.UpdateBookingStatusWithVersion(ctx, parent.ID, parent.Version, models.StatusConfirmed); err != nil {
		c.logger.Error().Err(err).Str("booking_id", parentID).Msg("parent confirm failed")
		return
	}
	parent.Status = models.StatusConfirmed
	parent.Version++
	c.publish(events.EventBookingAccepted, parent, "system")
	enqueueNotification(ctx, c.repo, c.logger, parent.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Operator found for request %s, booking confirmed", parent.ID), parent.ID)
	enqueueNotification(ctx, c.repo, c.logger, parent.SupplierID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Operator found for request %s", parent.ID), parent.ID)
}

func (c *Coordinator) acceptPartial(ctx context.Context, booking *models.Booking, resource *models.Resource, req *AcceptRequest) (*AcceptResult, error) {
	// An explicit quantity above what the resource can supply is the
	// supplier's mistake, not a race; reject it outright.
	if req.Quantity > resource.QuantityAvailable {
		metrics.IncAccept("quantity_exceeded")
		return nil, ErrQuantityExceeded
	}

	remaining := booking.RemainingQuantity
	for attempt := 0; attempt < allocateRetries; attempt++ {
		qty := req.Quantity
		if qty <= 0 {
			qty = min64(resource.QuantityAvailable, remaining)
		}
		if qty <= 0 {
			metrics.IncAccept("quantity_exceeded")
			return nil, ErrQuantityExceeded
		}

		alloc := &models.Allocation{
			BookingID:  booking.ID,
			SupplierID: req.SupplierID,
			ResourceID: resource.ID,
			Quantity:   qty,
		}
		left, err := c.repo.AllocateWithLock(ctx, alloc)
		if errors.Is(err, ErrQuantityExceeded) {
			if req.Quantity > 0 {
				// The supplier insisted on more than is left.
				metrics.IncAccept("quantity_exceeded")
				return nil, err
			}
			// Best-effort allocation raced with another accept; retry
			// against the remaining quantity the transaction reported.
			remaining = left
			continue
		}
		if errors.Is(err, database.ErrInvalidState) {
			metrics.IncAccept("invalid_state")
			return nil, ErrInvalidTransition
		}
		if err != nil {
			return nil, err
		}

		metrics.IncAccept("allocated")
		updated, err := c.repo.GetBooking(ctx, booking.ID)
		if err != nil {
			return nil, err
		}

		c.publish(events.EventBookingAllocated, updated, "supplier")
		enqueueNotification(ctx, c.repo, c.logger, updated.FarmerID, models.NotifyCategoryOutcome,
			fmt.Sprintf("Supplier %s committed %d of request %s (%d remaining)",
				req.SupplierID, qty, updated.ID, left), updated.ID)

		if left == 0 {
			c.router.removeFromIndex(ctx, updated)
			c.publish(events.EventBookingAccepted, updated, "supplier")
			enqueueNotification(ctx, c.repo, c.logger, updated.FarmerID, models.NotifyCategoryOutcome,
				fmt.Sprintf("Request %s is fully allocated", updated.ID), updated.ID)
		}
		return &AcceptResult{
			Booking:           updated,
			AllocatedQuantity: qty,
			RemainingQuantity: left,
		}, nil
	}

	metrics.IncAccept("lost_race")
	return nil, ErrConcurrentModification
}

// Reject returns a direct request to the broadcast pool. The request never
// silently disappears: it either re-enters searching or, when its window has
// already elapsed, expires with a notification to the requester.
func (c *Coordinator) Reject(ctx context.Context, bookingID, supplierID string) (*models.Booking, error) {
	booking, err := c.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPendingConfirmation || booking.SupplierID != supplierID {
		return nil, ErrInvalidTransition
	}

	if booking.WindowElapsed(time.Now()) {
		if err := c.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusExpired); err != nil {
			return nil, err
		}
		metrics.AddExpired(1)
		booking.Status = models.StatusExpired
		booking.Version++
		c.publish(events.EventBookingRejected, booking, "supplier")
		enqueueNotification(ctx, c.repo, c.logger, booking.FarmerID, models.NotifyCategoryOutcome,
			fmt.Sprintf("Request %s was declined and its window has passed", booking.ID), booking.ID)
		return booking, nil
	}

	if err := c.repo.ReleaseDirectWithVersion(ctx, booking.ID, booking.Version); err != nil {
		return nil, err
	}
	booking.SupplierID = ""
	booking.ResourceID = ""
	booking.Status = models.StatusSearching
	booking.Version++

	if err := c.index.Add(ctx, booking.Category, booking.Purpose, booking.Date, booking.ID); err != nil {
		c.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("offer index add failed")
	}

	c.publish(events.EventBookingRejected, booking, "supplier")
	enqueueNotification(ctx, c.repo, c.logger, booking.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Request %s was declined by supplier %s and is open to other suppliers again",
			booking.ID, supplierID), booking.ID)
	return booking, nil
}

// rejectRemainingOfferees tells suppliers still holding the broadcast offer
// that it is gone, so stale offers do not linger in their queues.
func (c *Coordinator) rejectRemainingOfferees(ctx context.Context, booking *models.Booking) {
	suppliers, err := c.router.EligibleSuppliers(ctx, booking)
	if err != nil {
		c.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("offeree lookup failed")
		return
	}
	for _, supplierID := range suppliers {
		if supplierID == booking.SupplierID {
			continue
		}
		enqueueNotification(ctx, c.repo, c.logger, supplierID, models.NotifyCategoryOutcome,
			fmt.Sprintf("Request %s is no longer available", booking.ID), booking.ID)
	}
}

func (c *Coordinator) spawnOperatorRequest(ctx context.Context, parent *models.Booking) {
	// The accepting supplier becomes the requester of the secondary cycle.
	child, err := c.router.CreateBooking(ctx, &CreateRequest{
		FarmerID:        parent.SupplierID,
		Category:        models.CategoryOperator,
		Purpose:         parent.Purpose,
		ParentID:        parent.ID,
		Date:            parent.Date,
		StartMinute:     parent.StartMinute,
		DurationMinutes: parent.DurationMinutes,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("booking_id", parent.ID).Msg("operator sub-request failed")
		return
	}
	c.publish(events.EventOperatorRequested, child, "supplier")
}

func (c *Coordinator) notifyConflictOverride(ctx context.Context, booking *models.Booking, supplierID string, conflicts []*models.Booking) {
	metrics.IncConflictOverride()
	c.publish(events.EventConflictOverride, booking, "supplier")

	lines := make([]string, 0, len(conflicts)+1)
	lines = append(lines, fmt.Sprintf("Supplier %s accepted %s over a schedule conflict:", supplierID, booking.ID))
	for _, b := range conflicts {
		lines = append(lines, fmt.Sprintf("- booking %s on %s %s-%s (%s)",
			b.ID, b.Date.Format("2006-01-02"),
			models.FormatClock(b.StartMinute), models.FormatClock(b.EndMinute()), b.Status))
	}
	enqueueNotification(ctx, c.repo, c.logger, models.NotifyTargetAdmin, models.NotifyCategoryConflict,
		strings.Join(lines, "\n"), booking.ID)
}

func (c *Coordinator) publish(eventType string, b *models.Booking, changedBy string) {
	if c.eventBus == nil {
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
	if err := c.eventBus.PublishJSON(eventType, payload); err != nil {
		c.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
