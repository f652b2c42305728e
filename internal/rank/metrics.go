package rank

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_search_fetches_total",
		Help: "Search result page fetches, by query variant and outcome.",
	}, []string{"variant", "status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rankwatch_search_fetch_duration_seconds",
		Help:    "Latency of search result page fetches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"variant"})

	checksFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rankwatch_checks_total",
		Help: "Completed rank checks, by area and whether the target was found.",
	}, []string{"area", "found"})
)

func observeFetch(variant Variant, status string, d time.Duration) {
	fetchesTotal.WithLabelValues(string(variant), status).Inc()
	if status == "ok" {
		fetchDuration.WithLabelValues(string(variant)).Observe(d.Seconds())
	}
}

func observeCheck(res CheckResult) {
	found := "false"
	if res.Found {
		found = "true"
	}
	checksFound.WithLabelValues(string(res.Area), found).Inc()
}
