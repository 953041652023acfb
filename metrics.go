package url2pdf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "url2pdf"

// Metrics records scheduler activity. A nil *Metrics records nothing.
type Metrics struct {
	running   prometheus.Gauge
	queued    prometheus.Gauge
	finished  *prometheus.CounterVec
	rejected  prometheus.Counter
	duration  *prometheus.HistogramVec
	queueWait prometheus.Histogram
}

// NewMetrics creates the scheduler collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_running",
			Help:      "Jobs currently holding a worker slot.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_queued",
			Help:      "Jobs waiting for a worker slot.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state, by state.",
		}, []string{"state"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_rejected_total",
			Help:      "Submissions refused because the queue was full.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent running the renderer, by terminal state.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"state"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "queue_wait_seconds",
			Help:      "Time jobs spent queued before a slot picked them up.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.running, m.queued, m.finished, m.rejected, m.duration, m.queueWait} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) jobQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) jobRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// jobAbandoned records a job that left the queue without reaching a slot.
func (m *Metrics) jobAbandoned() {
	if m == nil {
		return
	}
	m.queued.Dec()
}

func (m *Metrics) jobDequeued(wait time.Duration) {
	if m == nil {
		return
	}
	m.queued.Dec()
	m.queueWait.Observe(wait.Seconds())
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

// jobFinished records a terminal state. ran is false for jobs skipped
// before they took a slot.
func (m *Metrics) jobFinished(state State, ran bool, d time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(state.String()).Inc()
	if ran {
		m.running.Dec()
		m.duration.WithLabelValues(state.String()).Observe(d.Seconds())
	}
}
