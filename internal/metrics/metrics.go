package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes.
const (
	RowOK       = "ok"
	RowFallback = "fallback"
)

// Recorder collects pipeline metrics in a private registry. A nil *Recorder
// records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	rowsTotal   *prometheus.CounterVec
	llmRequests *prometheus.CounterVec
	llmRetries  *prometheus.CounterVec
	rowDuration prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentreview_rows_total",
				Help: "Rows processed, by outcome",
			},
			[]string{"status"},
		),
		llmRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentreview_llm_requests_total",
				Help: "Model requests sent, by operation and result",
			},
			[]string{"op", "status"},
		),
		llmRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commentreview_llm_retries_total",
				Help: "Model requests retried after a transient failure",
			},
			[]string{"op"},
		),
		rowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "commentreview_row_duration_seconds",
			Help:    "Wall time to annotate one row",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
	r.registry.MustRegister(r.rowsTotal, r.llmRequests, r.llmRetries, r.rowDuration)
	return r
}

func (r *Recorder) ObserveRow(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.rowsTotal.WithLabelValues(status).Inc()
	r.rowDuration.Observe(d.Seconds())
}

func (r *Recorder) ObserveLLMRequest(op, status string) {
	if r == nil {
		return
	}
	r.llmRequests.WithLabelValues(op, status).Inc()
}

func (r *Recorder) ObserveLLMRetry(op string) {
	if r == nil {
		return
	}
	r.llmRetries.WithLabelValues(op).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
