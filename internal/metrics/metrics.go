// Package metrics exposes Prometheus instrumentation for grid queries and
// the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GridQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datatables_grid_query_duration_seconds",
			Help:    "Duration of DataTables grid queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"grid"},
	)

	GridQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datatables_grid_query_errors_total",
			Help: "Total number of failed DataTables grid queries",
		},
		[]string{"grid"},
	)

	GridRecordsFiltered = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datatables_grid_records_filtered",
			Help:    "Number of records left after search and filters",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7), // 1 .. 1,000,000
		},
		[]string{"grid"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datatables_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordGridQuery records one grid query. A nil err counts the filtered
// records; a failed query only bumps the error counter.
func RecordGridQuery(grid string, elapsed time.Duration, filtered int, err error) {
	GridQueryDuration.WithLabelValues(grid).Observe(elapsed.Seconds())
	if err != nil {
		GridQueryErrors.WithLabelValues(grid).Inc()
		return
	}
	GridRecordsFiltered.WithLabelValues(grid).Observe(float64(filtered))
}

// RecordAPIRequest records one HTTP request. route is the registered path
// pattern, not the raw URL, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, elapsed time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
