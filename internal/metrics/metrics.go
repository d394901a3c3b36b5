package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "classbook"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of booking creation attempts by record type and outcome.",
		},
		[]string{"type", "status"},
	)

	bookingDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_deleted_total",
			Help:      "Count of bookings deleted by their owners.",
		},
		[]string{"type"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_detected_total",
			Help:      "Count of rejected creations by conflict kind.",
		},
		[]string{"kind"},
	)

	exceptionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occurrence_change_total",
			Help:      "Count of cancelled and restored recurring occurrences.",
		},
		[]string{"action"},
	)

	sweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_deleted_total",
			Help:      "Count of expired bookings removed by the sweeper.",
		},
	)

	sweepFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_delete_failed_total",
			Help:      "Count of sweeper deletes that failed.",
		},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_sent_total",
			Help:      "Count of per-recipient notification outcomes.",
		},
		[]string{"status"},
	)

	notificationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_retries_total",
			Help:      "Count of notification retry attempts.",
		},
	)

	notificationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_send_duration_seconds",
			Help:      "Time to deliver one notification including retries.",
			Buckets:   []float64{.05, .1, .5, 1, 2, 5, 10},
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open teacher sessions.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			bookingDeleted,
			conflicts,
			exceptionChanges,
			sweepDeleted,
			sweepFailed,
			notificationsSent,
			notificationRetries,
			notificationDuration,
			activeSessions,
			httpRequests,
		)
	})
}

func IncBookingCreated(recordType, status string) {
	bookingCreated.WithLabelValues(recordType, status).Inc()
}

func IncBookingDeleted(recordType string) {
	bookingDeleted.WithLabelValues(recordType).Inc()
}

func IncConflict(kind string) {
	conflicts.WithLabelValues(kind).Inc()
}

func IncOccurrenceChange(action string) {
	exceptionChanges.WithLabelValues(action).Inc()
}

func AddSweepDeleted(n int) {
	sweepDeleted.Add(float64(n))
}

func AddSweepFailed(n int) {
	sweepFailed.Add(float64(n))
}

func IncNotification(status string) {
	notificationsSent.WithLabelValues(status).Inc()
}

func IncNotificationRetry() {
	notificationRetries.Inc()
}

func ObserveNotificationDuration(seconds float64) {
	notificationDuration.Observe(seconds)
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
