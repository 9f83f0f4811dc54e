package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

const namespace = "eventingest"

// Prometheus reports pipeline activity to a registry.
type Prometheus struct {
	records       *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	retries       prometheus.Counter
	writeDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	factory := promauto.With(registerer)
	return &Prometheus{
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Number of raw records read from the source",
		}, []string{"result"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_resolved_total",
			Help:      "Number of events by terminal resolution",
		}, []string{"resolution"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_retries_total",
			Help:      "Number of store writes scheduled for retry",
		}),
		writeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Duration of single store write attempts",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"result"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events waiting in the in-memory queue",
		}),
	}
}

func (p *Prometheus) RecordRead(malformed bool) {
	result := "ok"
	if malformed {
		result = "malformed"
	}
	p.records.WithLabelValues(result).Inc()
}

func (p *Prometheus) EventResolved(resolution ingest.Resolution) {
	p.resolutions.WithLabelValues(string(resolution)).Inc()
}

func (p *Prometheus) WriteObserved(result string, duration time.Duration) {
	p.writeDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (p *Prometheus) RetryScheduled() {
	p.retries.Inc()
}

func (p *Prometheus) QueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}
