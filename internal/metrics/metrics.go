package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CurrenciesRequestsTotal prometheus.Counter
	RatesRequestsTotal      prometheus.Counter

	UpstreamFetchesTotal *prometheus.CounterVec
	CacheLookupsTotal    *prometheus.CounterVec
	PipelineDuration     *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		CurrenciesRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "currencies_requests_total",
				Help: "Total number of currency list requests",
			},
		),

		RatesRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "currency_rates_requests_total",
				Help: "Total number of historical currency rate requests",
			},
		),

		UpstreamFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_upstream_fetches_total",
				Help: "Total number of archive downloads from the upstream source",
			},
			[]string{"endpoint", "result"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_cache_lookups_total",
				Help: "Total number of rate table cache lookups",
			},
			[]string{"result"},
		),

		PipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rates_pipeline_duration_seconds",
				Help:    "Duration of each rate pipeline stage in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}
