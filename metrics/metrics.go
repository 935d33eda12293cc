// Package metrics counts transfer outcomes in a Prometheus registry that can
// be dumped in the text exposition format at the end of a run, for the node
// exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/franksops/s3xfer/engine"
)

const namespace = "s3xfer"

// Collector records per-job results. It is safe for concurrent use and its
// Observe method can be passed straight to engine.WithObserver.
type Collector struct {
	registry *prometheus.Registry

	jobCounter   *prometheus.CounterVec
	byteCounter  *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	roundElapsed prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Transfer jobs by operation and result.",
		}, []string{"op", "result"}),
		byteCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved by completed jobs.",
		}, []string{"op"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent in a single transfer job.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"op"}),
		roundElapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_seconds",
			Help:      "Wall time of all dispatch rounds.",
		}),
	}

	for _, col := range []prometheus.Collector{c.jobCounter, c.byteCounter, c.jobDuration, c.roundElapsed} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return c, nil
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records one finished job.
func (c *Collector) Observe(res engine.JobResult) {
	op := string(res.Job.Op)
	c.jobCounter.WithLabelValues(op, string(res.Status)).Inc()
	if res.Status != engine.StatusDone {
		return
	}
	c.byteCounter.WithLabelValues(op).Add(float64(res.Bytes))
	c.jobDuration.WithLabelValues(op).Observe(res.Elapsed.Seconds())
}

// ObserveRound adds a round's wall time.
func (c *Collector) ObserveRound(round *engine.RoundResult) {
	c.roundElapsed.Add(round.Elapsed.Seconds())
}

// WriteTextfile atomically writes the registry to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
