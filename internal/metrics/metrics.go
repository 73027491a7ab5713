package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "bookings_created_total",
			Help:      "Bookings created by dispatch mode.",
		},
		[]string{"mode"}, // direct or broadcast
	)

	accepts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "accepts_total",
			Help:      "Accept attempts by outcome.",
		},
		[]string{"outcome"},
	)

	conflictOverrides = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "conflict_overrides_total",
			Help:      "Accepts committed over a schedule conflict warning.",
		},
	)

	expirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "bookings_expired_total",
			Help:      "Bookings expired by the sweeper or on read.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "notifications_total",
			Help:      "Notification deliveries by status.",
		},
		[]string{"status"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "booking_events_total",
			Help:      "Domain events published on the bus by type.",
		},
		[]string{"type"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldhire",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			accepts,
			conflictOverrides,
			expirations,
			notifications,
			bookingEvents,
			httpRequests,
		)
	})
}

// IncBookingCreated counts a created booking for a dispatch mode.
func IncBookingCreated(mode string) {
	bookingsCreated.WithLabelValues(mode).Inc()
}

// IncAccept counts an accept attempt outcome.
func IncAccept(outcome string) {
	accepts.WithLabelValues(outcome).Inc()
}

// IncConflictOverride counts a committed conflict override.
func IncConflictOverride() {
	conflictOverrides.Inc()
}

// AddExpired counts bookings moved to expired.
func AddExpired(n int) {
	expirations.Add(float64(n))
}

// IncNotification counts a delivery attempt result.
func IncNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}

// IncBookingEvent counts a published domain event by type.
func IncBookingEvent(eventType string) {
	bookingEvents.WithLabelValues(eventType).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
