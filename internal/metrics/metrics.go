package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DownloadEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamedock",
			Name:      "download_events_total",
			Help:      "Count of backend events processed by the lifecycle manager.",
		},
		[]string{"type"},
	)

	BackendExecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamedock",
			Name:      "backend_exec_errors_total",
			Help:      "Failed one-shot invocations of the backend CLI.",
		},
		[]string{"subcommand"},
	)

	BackendExecLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gamedock",
			Name:      "backend_exec_latency_seconds",
			Help:      "Latency of one-shot backend CLI invocations.",
		},
		[]string{"subcommand"},
	)

	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gamedock",
			Name:      "active_downloads",
			Help:      "Number of backend operations tracked by the adapter.",
		},
	)

	TagCatalogFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gamedock",
			Name:      "tag_catalog_fetches_total",
			Help:      "Tag catalog document fetches by result.",
		},
		[]string{"result"},
	)
)

var once sync.Once

// Register registers the gamedock metrics into the default registry. Repeated
// calls are no-ops.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(DownloadEvents, BackendExecErrors, BackendExecLatency, ActiveDownloads, TagCatalogFetches)
	})
}
