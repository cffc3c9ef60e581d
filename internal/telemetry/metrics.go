package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	PollAttempts       = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_poll_attempts_total", Help: "Job status polls issued"})
	PollRetries        = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_poll_retries_total", Help: "Polls retried after transport errors"})
	JobsSubmitted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_jobs_submitted_total", Help: "Fresh search jobs submitted"})
	JobsReused         = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_jobs_reused_total", Help: "Cached jobs reused without resubmission"})
	ExtractionAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "downloader_extraction_attempts_total", Help: "Extraction strategy attempts"}, []string{"strategy", "outcome"})
	PagesFetched       = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_pages_fetched_total", Help: "Result pages fetched"})
	RowsFetched        = prometheus.NewCounter(prometheus.CounterOpts{Name: "downloader_rows_fetched_total", Help: "Result rows fetched across pages"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			PollAttempts,
			PollRetries,
			JobsSubmitted,
			JobsReused,
			ExtractionAttempts,
			PagesFetched,
			RowsFetched,
		)
	})
	return promhttp.Handler()
}
