package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "km_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Outcome is paid, duplicate, failed, amount_invalid, token_invalid, not_found, closed or error
	CheckoutSettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_checkout_settlements_total",
			Help: "Checkout settlement attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	SettledAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_settled_amount_sum_total",
			Help: "Amount in so'm applied to payment periods",
		},
		[]string{"method"},
	)

	UnappliedAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_unapplied_amount_sum_total",
			Help: "Amount in so'm received but not applied to any period",
		},
		[]string{"method"},
	)

	AutoPeriodsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "km_auto_periods_created_total",
			Help: "Payment periods created by the allocator for elapsed months",
		},
	)

	ProviderCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_provider_callbacks_total",
			Help: "Provider callbacks received by provider and HTTP status",
		},
		[]string{"provider", "status"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "km_realtime_clients",
			Help: "Connected settlement feed websocket clients",
		},
	)

	ArchivedPayloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "km_archived_callback_payloads_total",
			Help: "Raw callback payloads written to object storage by result",
		},
		[]string{"result"},
	)
)

// RecordAllocation counts what an allocation consumed
func RecordAllocation(method string, applied, remaining int64, created int) {
	if applied > 0 {
		SettledAmountTotal.WithLabelValues(method).Add(float64(applied))
	}
	if remaining > 0 {
		UnappliedAmountTotal.WithLabelValues(method).Add(float64(remaining))
	}
	if created > 0 {
		AutoPeriodsCreatedTotal.Add(float64(created))
	}
}
