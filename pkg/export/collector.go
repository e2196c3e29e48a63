// Package export renders aggregate snapshots in the Prometheus text
// exposition format and serves them, either over a pull HTTP listener or
// through a synchronous on-demand query.
//
// The exporter is strictly read-only with respect to measurement state: it
// consumes Store.Snapshot and never requires exclusive access to the store.
package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/padlatency/pkg/aggregate"
)

// Metric family names. Units are nanoseconds throughout.
const (
	MetricCount = "pipeline_element_latency_count_count"
	MetricLast  = "pipeline_element_latency_last_gauge"
	MetricSum   = "pipeline_element_latency_sum_count"
)

var labelNames = []string{"element", "src_pad", "sink_pad"}

// Collector exposes an aggregate store as three Prometheus metric families:
// a measurement counter, a last-value gauge, and a cumulative-sum counter,
// one series per pad pair.
//
// Collect takes a snapshot at scrape time and emits const metrics, so the
// collector holds no metric state of its own and scrapes never mutate the
// store.
type Collector struct {
	store *aggregate.Store

	countDesc *prometheus.Desc
	lastDesc  *prometheus.Desc
	sumDesc   *prometheus.Desc
}

// NewCollector creates a collector over store.
func NewCollector(store *aggregate.Store) *Collector {
	return &Collector{
		store: store,
		countDesc: prometheus.NewDesc(
			MetricCount,
			"Count of latency measurements per element",
			labelNames, nil,
		),
		lastDesc: prometheus.NewDesc(
			MetricLast,
			"Last latency in nanoseconds per element",
			labelNames, nil,
		),
		sumDesc: prometheus.NewDesc(
			MetricSum,
			"Sum of latencies in nanoseconds per element",
			labelNames, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.lastDesc
	ch <- c.sumDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.store.Snapshot() {
		labels := []string{e.Key.Element, e.Key.SrcPad, e.Key.SinkPad}
		ch <- prometheus.MustNewConstMetric(
			c.countDesc, prometheus.CounterValue, float64(e.Count), labels...)
		ch <- prometheus.MustNewConstMetric(
			c.lastDesc, prometheus.GaugeValue, float64(e.Last), labels...)
		ch <- prometheus.MustNewConstMetric(
			c.sumDesc, prometheus.CounterValue, float64(e.Sum), labels...)
	}
}
