package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_dispatch", Name: "dispatch_attempts_total",
		Help: "Matching rounds started (including re-match retries)",
	})
	OffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_dispatch", Name: "offers_total",
		Help: "Offer attempts by outcome",
	}, []string{"outcome"}) // accepted|declined|expired|reassigned
	RidesAssignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_dispatch", Name: "rides_assigned_total",
		Help: "Rides that reached DRIVER_ASSIGNED",
	})
	RidesCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_dispatch", Name: "rides_cancelled_total",
		Help: "Rides cancelled by actor",
	}, []string{"actor"}) // passenger|driver|system
	ActiveDispatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ride_dispatch", Name: "active_dispatches",
		Help: "Dispatch workflows currently in flight",
	})
	DriversTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ride_dispatch", Name: "drivers_tracked",
		Help: "Driver availability records currently held",
	})
	OfferResponseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ride_dispatch", Name: "offer_response_seconds",
		Help:    "Time from offer creation to driver response",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30},
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_dispatch", Name: "http_requests_total",
		Help: "Total HTTP requests handled",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ride_dispatch", Name: "http_request_duration_seconds",
		Help:    "HTTP request latency distribution",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
