package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyang/statesync/internal/domain/delivery"
	portmetrics "github.com/alanyang/statesync/internal/port/metrics"
)

const namespace = "statesync"

// Collector is a prometheus.Collector fed by the delivery path.
type Collector struct {
	deliveries *prometheus.CounterVec
	publish    *prometheus.HistogramVec
	wait       prometheus.Histogram
	total      prometheus.Histogram
}

var _ portmetrics.Recorder = (*Collector)(nil)

// NewCollector returns a Collector with every outcome pre-initialised to zero.
func NewCollector() *Collector {
	c := &Collector{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Notifications by delivery outcome.",
			}, []string{"outcome"},
		),
		publish: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_seconds",
				Help:      "Time spent inside the channel publish call.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"channel"},
		),
		wait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "wait_seconds",
				Help:      "Time a notification spent queued before publish started.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 1},
			},
		),
		total: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "total_seconds",
				Help:      "Time from the notify call to publish completion.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
	for _, o := range []delivery.Outcome{
		delivery.OutcomeDelivered,
		delivery.OutcomePublishFailed,
		delivery.OutcomeResolveFailed,
		delivery.OutcomeDropped,
		delivery.OutcomeRejected,
	} {
		c.deliveries.WithLabelValues(string(o))
	}
	return c
}

// RecordDelivery is part of the port/metrics.Recorder interface.
func (c *Collector) RecordDelivery(_ context.Context, r delivery.Report) {
	c.deliveries.WithLabelValues(string(r.Outcome)).Inc()

	switch r.Outcome {
	case delivery.OutcomeDelivered, delivery.OutcomePublishFailed:
		c.publish.WithLabelValues(r.Channel).Observe(r.Publish.Seconds())
		c.wait.Observe(r.Waited.Seconds())
		c.total.Observe(r.Total.Seconds())
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.deliveries.Describe(ch)
	c.publish.Describe(ch)
	c.wait.Describe(ch)
	c.total.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.deliveries.Collect(ch)
	c.publish.Collect(ch)
	c.wait.Collect(ch)
	c.total.Collect(ch)
}

// QueueDepthGauge exposes the dispatch backlog.
func QueueDepthGauge(depth func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Notifications waiting for the dispatch worker.",
		},
		func() float64 { return float64(depth()) },
	)
}
