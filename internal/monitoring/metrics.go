package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PartnersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partners_created_total",
			Help: "Partners added to the ledger",
		},
	)

	ReferralTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_transitions_total",
			Help: "Referral state changes by target status",
		},
		[]string{"status"},
	)

	CommissionsSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commissions_settled_amount_total",
			Help: "Sum of commission amounts credited to partners",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Background jobs processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	EarningsDriftPartners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partner_earnings_drift",
			Help: "Partners whose total earnings disagree with settled referrals at last reconciliation",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Open WebSocket connections",
		},
	)
)
