// Package metrics exposes Prometheus metrics for the deposit gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsTotal counts deposit attempts by outcome (settled, rejected,
	// reverted).
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_deposits_total",
			Help: "Deposit attempts by outcome",
		},
		[]string{"outcome"},
	)

	// DepositVolume sums settled deposit input amounts.
	DepositVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zapgate_deposit_volume_total",
			Help: "Total settled deposit volume (base denomination)",
		},
	)

	// AdmissionRejections counts admission-gate rejections by gate.
	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_admission_rejections_total",
			Help: "Admission rejections by gate",
		},
		[]string{"gate"}, // flash_loan, min_interval, block_volume, daily_limit, breaker
	)

	// BreakerTrips counts circuit breaker activations.
	BreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zapgate_breaker_trips_total",
			Help: "Circuit breaker activations",
		},
	)

	// BreakerActive reports whether the breaker is currently tripped.
	BreakerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapgate_breaker_active",
			Help: "Circuit breaker state (1=tripped, 0=clear)",
		},
	)

	// OracleResolutions counts price resolutions by source.
	OracleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_oracle_resolutions_total",
			Help: "Price resolutions by source",
		},
		[]string{"source"}, // manual, primary, secondary, fallback
	)

	// OracleFailures counts failed price resolutions by reason.
	OracleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_oracle_failures_total",
			Help: "Failed price resolutions by reason",
		},
		[]string{"reason"}, // deviation, stale_manual, all_down, market_cap
	)

	// TwapPrice reports the last computed TWAP.
	TwapPrice = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapgate_twap_price",
			Help: "Last computed time-weighted average price",
		},
	)

	// ObservationCount reports the ring buffer fill level.
	ObservationCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zapgate_observation_count",
			Help: "Observations currently held in the ring buffer",
		},
	)

	// Compensations counts rollback compensations by step.
	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_compensations_total",
			Help: "Deposit rollback compensations by step",
		},
		[]string{"step"}, // reverse_swap, refund
	)

	// DepositDuration tracks end-to-end deposit processing time.
	DepositDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zapgate_deposit_duration_seconds",
			Help:    "End-to-end deposit processing duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
	)

	// HTTPRequests counts API requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapgate_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "status"},
	)

	// HTTPDuration tracks API request latency by route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapgate_http_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"route"},
	)
)

// ObserveDeposit records one finished deposit attempt.
func ObserveDeposit(outcome string, amount int64, took time.Duration) {
	DepositsTotal.WithLabelValues(outcome).Inc()
	if outcome == "settled" && amount > 0 {
		DepositVolume.Add(float64(amount))
	}
	DepositDuration.Observe(took.Seconds())
}

// SetBreakerActive mirrors the breaker trip state into the gauge.
func SetBreakerActive(active bool) {
	if active {
		BreakerActive.Set(1)
	} else {
		BreakerActive.Set(0)
	}
}
