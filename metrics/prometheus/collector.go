// Package prometheus exports index metrics through
// github.com/prometheus/client_golang.
//
//	c := prometheus.NewCollector(prom.DefaultRegisterer, "myapp")
//	idx, _ := vecforest.New(64, distance.Angular, vecforest.WithMetricsCollector(c))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecforest"
)

var _ vecforest.MetricsCollector = (*Collector)(nil)

// Collector implements vecforest.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	opLatency  *prom.HistogramVec
	operations *prom.CounterVec
	trees      prom.Gauge
	nodes      prom.Gauge
	candidates prom.Histogram
	results    prom.Histogram
	bytes      *prom.CounterVec
}

// NewCollector creates a Collector and registers it with reg. A nil reg
// leaves the metrics unregistered. namespace prefixes every metric name and
// defaults to "vecforest".
func NewCollector(reg prom.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "vecforest"
	}

	c := &Collector{
		opLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "status"}),
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total index operations",
		}, []string{"op", "status"}),
		trees: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "trees",
			Help:      "Number of trees after the last build",
		}),
		nodes: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Number of nodes after the last build",
		}),
		candidates: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Distinct items ranked by exact distance per search",
			Buckets:   prom.ExponentialBuckets(1, 4, 10),
		}),
		results: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "search_k",
			Help:      "Requested neighbors per search",
			Buckets:   prom.ExponentialBuckets(1, 2, 10),
		}),
		bytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "io_bytes_total",
			Help:      "Bytes written by save and mapped by load",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(c.opLatency, c.operations, c.trees, c.nodes, c.candidates, c.results, c.bytes)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.operations.WithLabelValues(op, s).Inc()
}

func (c *Collector) RecordAdd(d time.Duration, err error) {
	c.observe("add", d, err)
}

func (c *Collector) RecordBuild(trees, nodes int, d time.Duration, err error) {
	c.observe("build", d, err)
	if err == nil {
		c.trees.Set(float64(trees))
		c.nodes.Set(float64(nodes))
	}
}

func (c *Collector) RecordSearch(k, candidates int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.results.Observe(float64(k))
		c.candidates.Observe(float64(candidates))
	}
}

func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.observe("save", d, err)
	if err == nil {
		c.bytes.WithLabelValues("save").Add(float64(bytes))
	}
}

func (c *Collector) RecordLoad(bytes int64, d time.Duration, err error) {
	c.observe("load", d, err)
	if err == nil {
		c.bytes.WithLabelValues("load").Add(float64(bytes))
	}
}
