// Package metrics exposes Prometheus instruments for the listings pipeline.
//
// Nothing here serves HTTP. The CLI writes the default registry to a
// node_exporter textfile on exit (WriteTextfile) when configured to.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdguide_provider_requests_total",
			Help: "Schedules Direct requests by endpoint and HTTP status (\"error\" for transport failures).",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdguide_provider_request_duration_seconds",
			Help:    "Schedules Direct request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdguide_token_refreshes_total",
			Help: "Login exchanges by result (ok, rejected, error).",
		},
		[]string{"result"},
	)

	MappedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdguide_mapped_channels",
			Help: "Channels in the current channel-number to station table.",
		},
	)

	ProgramsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sdguide_programs_normalized_total",
			Help: "Airings normalised into program records.",
		},
	)

	ProgramDetailsMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sdguide_program_details_missing_total",
			Help: "Schedule entries skipped because /programs returned no details for their id.",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sdguide_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)
)

// ObserveRequest records one provider round trip. status is the HTTP code,
// or 0 when the request never got a response.
func ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ProviderRequests.WithLabelValues(endpoint, label).Inc()
	ProviderRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// WriteTextfile dumps the default registry in the text exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
