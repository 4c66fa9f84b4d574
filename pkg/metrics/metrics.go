package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	ItemsProcessed       *prometheus.CounterVec
	NavigationDuration   *prometheus.HistogramVec
	RunsTotal            *prometheus.CounterVec
	LastRunOpportunities prometheus.Gauge
	PriceChangesTotal    *prometheus.CounterVec

	once sync.Once
)

// Init registers all collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_items_processed_total",
			Help: "Catalog items processed, by outcome.",
		},
		[]string{"status"},
	)

	NavigationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_navigation_duration_seconds",
			Help:    "Duration of product page navigations.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"domain"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Reconciliation runs, by result.",
		},
		[]string{"result"}, // success, failure, skipped
	)

	LastRunOpportunities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciler_last_run_opportunities",
			Help: "Pricing opportunities found by the last completed run.",
		},
	)

	PriceChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_price_changes_total",
			Help: "Competitor price changes observed between runs.",
		},
		[]string{"direction"}, // up, down
	)
}
