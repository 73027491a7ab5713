package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldhire/internal/domain"
	"fieldhire/internal/events"
	"fieldhire/internal/metrics"
	"fieldhire/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Router turns incoming requests into direct or broadcast bookings and
// computes the eligible recipient set. No resource is reserved at this
// stage; dispatch only creates the booking and its visibility.
type Router struct {
	repo           domain.Repository
	index          domain.OfferIndex
	detector       *Detector
	eventBus       domain.EventPublisher
	logger         *zerolog.Logger
	maxBookingDays int
	horizonDays    int
}

func NewRouter(repo domain.Repository, index domain.OfferIndex, detector *Detector, eventBus domain.EventPublisher, maxBookingDays, horizonDays int, logger *zerolog.Logger) *Router {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Router{
		repo:           repo,
		index:          index,
		detector:       detector,
		eventBus:       eventBus,
		logger:         logger,
		maxBookingDays: maxBookingDays,
		horizonDays:    horizonDays,
	}
}

type CreateRequest struct {
	FarmerID               string
	Category               string
	Purpose                string
	ResourceID             string // set for direct requests
	Quantity               int64
	AllowMultipleSuppliers bool
	PreferredModel         string
	OperatorRequired       bool
	ParentID               string
	Date                   time.Time
	StartMinute            int
	DurationMinutes        int
}

// OpenRequest is a booking offered to a supplier, annotated with the
// speculative conflicts the supplier would take on by accepting it.
type OpenRequest struct {
	Booking   *models.Booking   `json:"booking"`
	Conflicts []*models.Booking `json:"conflicts,omitempty"`
}

func (r *Router) validate(req *CreateRequest, now time.Time) error {
	if req.FarmerID == "" {
		return errors.New("farmer id is required")
	}
	if req.Category == "" || req.Purpose == "" {
		return errors.New("category and purpose are required")
	}
	if req.StartMinute < 0 || req.StartMinute >= models.MinutesPerDay {
		return errors.New("start time is outside the day")
	}
	if req.DurationMinutes <= 0 || req.StartMinute+req.DurationMinutes > models.MinutesPerDay {
		return errors.New("duration must be positive and end within the day")
	}
	if req.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}

	y, m, d := req.Date.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).
		Add(time.Duration(req.StartMinute+req.DurationMinutes) * time.Minute)
	if !now.Before(end) {
		return errors.New("requested window has already elapsed")
	}
	if req.Date.After(now.AddDate(0, 0, r.maxBookingDays)) {
		return fmt.Errorf("date is more than %d days ahead", r.maxBookingDays)
	}
	return nil
}

// CreateBooking routes a request: a named resource makes it a direct
// request pending that supplier's confirmation, anything else becomes a
// broadcast visible to every matching supplier.
func (r *Router) CreateBooking(ctx context.Context, req *CreateRequest) (*models.Booking, error) {
	now := time.Now()
	if err := r.validate(req, now); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:                     uuid.NewString(),
		FarmerID:               req.FarmerID,
		Category:               req.Category,
		Purpose:                req.Purpose,
		Quantity:               req.Quantity,
		RemainingQuantity:      req.Quantity,
		AllowMultipleSuppliers: req.AllowMultipleSuppliers,
		PreferredModel:         req.PreferredModel,
		OperatorRequired:       req.OperatorRequired,
		ParentID:               req.ParentID,
		Date:                   req.Date,
		StartMinute:            req.StartMinute,
		DurationMinutes:        req.DurationMinutes,
	}

	mode := "broadcast"
	if req.ResourceID != "" {
		resource, err := r.repo.GetResource(ctx, req.ResourceID)
		if err != nil {
			return nil, err
		}
		if !resource.IsDispatchable() || !resource.SupportsPurpose(req.Purpose) {
			return nil, ErrResourceUnavailable
		}
		booking.ResourceID = resource.ID
		booking.SupplierID = resource.SupplierID
		booking.Status = models.StatusPendingConfirmation
		mode = "direct"
	} else {
		booking.Status = models.StatusSearching
	}

	if err := r.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}
	metrics.IncBookingCreated(mode)
	r.publish(events.EventBookingCreated, booking, "farmer")

	if mode == "direct" {
		enqueueNotification(ctx, r.repo, r.logger, booking.SupplierID, models.NotifyCategoryRequest,
			fmt.Sprintf("Direct request %s: %s for %s on %s at %s",
				booking.ID, booking.Category, booking.Purpose,
				booking.Date.Format("2006-01-02"), models.FormatClock(booking.StartMinute)),
			booking.ID)
		return booking, nil
	}

	if err := r.index.Add(ctx, booking.Category, booking.Purpose, booking.Date, booking.ID); err != nil {
		r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("offer index add failed")
	}

	suppliers, err := r.EligibleSuppliers(ctx, booking)
	if err != nil {
		r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("eligible supplier lookup failed")
		return booking, nil
	}
	for _, supplierID := range suppliers {
		enqueueNotification(ctx, r.repo, r.logger, supplierID, models.NotifyCategoryRequest,
			fmt.Sprintf("New request %s: %s for %s on %s at %s",
				booking.ID, booking.Category, booking.Purpose,
				booking.Date.Format("2006-01-02"), models.FormatClock(booking.StartMinute)),
			booking.ID)
	}
	return booking, nil
}

// EligibleSuppliers computes the distinct suppliers owning an approved,
// available resource of the request's category whose rate list covers the
// purpose. The requester is never eligible for their own request.
func (r *Router) EligibleSuppliers(ctx context.Context, booking *models.Booking) ([]string, error) {
	resources, err := r.repo.ListApprovedResources(ctx, booking.Category)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var suppliers []string
	for _, res := range resources {
		if !res.SupportsPurpose(booking.Purpose) {
			continue
		}
		if res.SupplierID == booking.FarmerID || seen[res.SupplierID] {
			continue
		}
		seen[res.SupplierID] = true
		suppliers = append(suppliers, res.SupplierID)
	}
	return suppliers, nil
}

// OpenRequests lists the requests currently visible to a supplier: broadcast
// bookings matching any of the supplier's dispatchable resources, plus direct
// requests addressed to them. Requests whose window has elapsed are expired
// on read instead of being returned.
func (r *Router) OpenRequests(ctx context.Context, supplierID string) ([]*OpenRequest, error) {
	resources, err := r.repo.ListSupplierResources(ctx, supplierID)
	if err != nil {
		return nil, err
	}

	type pair struct{ category, purpose string }
	pairs := make(map[pair]bool)
	for _, res := range resources {
		if !res.IsDispatchable() {
			continue
		}
		for purpose := range res.PurposeRates {
			pairs[pair{res.Category, purpose}] = true
		}
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	idSet := make(map[string]bool)
	var ids []string
	for p := range pairs {
		for day := 0; day <= r.horizonDays; day++ {
			date := today.AddDate(0, 0, day)
			entries, err := r.index.List(ctx, p.category, p.purpose, date)
			if err != nil {
				r.logger.Error().Err(err).Msg("offer index list failed")
				continue
			}
			for _, id := range entries {
				if !idSet[id] {
					idSet[id] = true
					ids = append(ids, id)
				}
			}
		}
	}

	bookings, err := r.repo.GetBookingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Direct requests bypass the index.
	direct, err := r.repo.GetSupplierBookings(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	for _, b := range direct {
		if b.Status == models.StatusPendingConfirmation && !idSet[b.ID] {
			bookings = append(bookings, b)
		}
	}

	var open []*OpenRequest
	for _, b := range bookings {
		switch b.Status {
		case models.StatusSearching, models.StatusPendingConfirmation:
		default:
			// Stale index entry; accepted or terminal bookings are no
			// longer offered.
			r.removeFromIndex(ctx, b)
			continue
		}
		if b.FarmerID == supplierID {
			continue
		}
		if b.WindowElapsed(now) {
			r.expireOnRead(ctx, b)
			continue
		}

		conflicts, err := r.detector.FindConflicts(ctx, supplierID, b.Date, b.StartMinute, b.DurationMinutes, b.ID)
		if err != nil {
			return nil, err
		}
		open = append(open, &OpenRequest{Booking: b, Conflicts: conflicts})
	}
	return open, nil
}

func (r *Router) expireOnRead(ctx context.Context, b *models.Booking) {
	err := r.repo.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusExpired)
	if errors.Is(err, ErrConcurrentModification) {
		return
	}
	if err != nil {
		r.logger.Error().Err(err).Str("booking_id", b.ID).Msg("expire on read failed")
		return
	}
	metrics.AddExpired(1)
	r.removeFromIndex(ctx, b)
	b.Status = models.StatusExpired
	r.publish(events.EventBookingExpired, b, "system")
	enqueueNotification(ctx, r.repo, r.logger, b.FarmerID, models.NotifyCategoryOutcome,
		fmt.Sprintf("Request %s expired without acceptance", b.ID), b.ID)
}

func (r *Router) removeFromIndex(ctx context.Context, b *models.Booking) {
	if err := r.index.Remove(ctx, b.Category, b.Purpose, b.Date, b.ID); err != nil {
		r.logger.Error().Err(err).Str("booking_id", b.ID).Msg("offer index remove failed")
	}
}

func (r *Router) publish(eventType string, b *models.Booking, changedBy string) {
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
		Quantity:   b.Quantity,
		ChangedBy:  changedBy,
	}
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}
