// README: Prometheus collectors for bookings, ride transitions, sweeps and HTTP traffic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "booking_transitions_total", Help: "Booking transitions by resulting status"},
		[]string{"status"},
	)
	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "ride_transitions_total", Help: "Ride transitions by resulting status and actor"},
		[]string{"status", "actor"},
	)
	SweepCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "sweep_completed_rides_total", Help: "Rides completed by the sweeper by pass"},
		[]string{"pass"},
	)
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carpool",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full sweep",
		Buckets:   prometheus.DefBuckets,
	})
	TxConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "tx_conflicts_total", Help: "Transactions aborted by a concurrent update"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "events_dropped_total", Help: "Events dropped because the publish queue was full"})
)
