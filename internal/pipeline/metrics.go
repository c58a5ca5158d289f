package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe; a nil *Metrics records nothing.
type Metrics struct {
	files   *prometheus.CounterVec
	chunks  prometheus.Counter
	stages  *prometheus.HistogramVec
	retries *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vecingest_files_total",
			Help: "Files processed, by outcome.",
		}, []string{"status"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vecingest_chunks_total",
			Help: "Chunks upserted to the vector store.",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecingest_stage_duration_seconds",
			Help:    "Duration of each ingestion stage.",
			Buckets: prometheus.ExponentialBuckets(0.005, 3, 10),
		}, []string{"stage"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vecingest_retries_total",
			Help: "Retried collaborator calls, by stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.files, m.chunks, m.stages, m.retries)
	return m
}

func (m *Metrics) observeStage(stage Stage, since time.Time) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(string(stage)).Observe(time.Since(since).Seconds())
}

func (m *Metrics) fileDone(status string, chunks int) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
	if chunks > 0 {
		m.chunks.Add(float64(chunks))
	}
}

func (m *Metrics) retried(stage Stage) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(stage)).Inc()
}
