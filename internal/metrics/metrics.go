package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraping pipeline.
type Metrics struct {
	Registry           *prometheus.Registry
	PagesFetchedTotal  *prometheus.CounterVec
	FetchRetriesTotal  prometheus.Counter
	FetchFailuresTotal *prometheus.CounterVec
	ProductsSavedTotal *prometheus.CounterVec
	PageFetchDuration  prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketworker_pages_fetched_total",
			Help: "Total pages fetched successfully, by site.",
		},
		[]string{"site"},
	)
	fetchRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketworker_fetch_retries_total",
			Help: "Total fetch retry attempts scheduled.",
		},
	)
	fetchFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketworker_fetch_failures_total",
			Help: "Total pages abandoned after exhausting retries, by error kind.",
		},
		[]string{"kind"},
	)
	productsSaved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketworker_products_saved_total",
			Help: "Total products handed to the store gateway, by result.",
		},
		[]string{"result"},
	)
	pageFetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketworker_page_fetch_duration_seconds",
			Help:    "Latency of successful page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(pagesFetched, fetchRetries, fetchFailures, productsSaved, pageFetchDuration)

	return &Metrics{
		Registry:           registry,
		PagesFetchedTotal:  pagesFetched,
		FetchRetriesTotal:  fetchRetries,
		FetchFailuresTotal: fetchFailures,
		ProductsSavedTotal: productsSaved,
		PageFetchDuration:  pageFetchDuration,
	}
}

// IncPageFetched increments the fetched-pages counter for a site.
func (m *Metrics) IncPageFetched(site string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(site).Inc()
}

// IncRetry increments the retry counter.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}

// IncFetchFailure increments the failure counter for an error kind.
func (m *Metrics) IncFetchFailure(kind string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(kind).Inc()
}

// IncProductSaved increments the saved-products counter for a result label.
func (m *Metrics) IncProductSaved(result string) {
	if m == nil {
		return
	}
	m.ProductsSavedTotal.WithLabelValues(result).Inc()
}

// ObserveFetchDuration records a successful page fetch duration.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.PageFetchDuration.Observe(d.Seconds())
}
