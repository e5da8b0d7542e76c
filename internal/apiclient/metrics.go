package apiclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_api_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	apiRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_token_refresh_total",
			Help: "Total number of token refresh cycles",
		},
		[]string{"outcome"}, // outcome: success/failure/coalesced/no_session
	)

	apiRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_unauthorized_retries_total",
			Help: "Total number of requests retried after a 401",
		},
	)
)

func recordRequest(method, endpoint string, status int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func recordRefresh(outcome string) {
	apiRefreshTotal.WithLabelValues(outcome).Inc()
}

func recordRetry() {
	apiRetriesTotal.Inc()
}
