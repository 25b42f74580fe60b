package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// storeCollector exposes the metrics of a Store to Prometheus.
type storeCollector struct {
	store Store
	log   Logger
}

// NewCollector returns an unchecked prometheus.Collector that reports every
// metric of store as a gauge on each scrape. Each scrape reads one Snapshot
// so it never observes a Sweep or Increment half done. WithLogger applies to
// the collector.
func NewCollector(store Store, opts ...Option) prometheus.Collector {
	o := newOptions(opts)
	return &storeCollector{store: store, log: o.log}
}

// Describe sends nothing which makes the collector unchecked, metrics are
// created and removed by the Store at any time.
func (c *storeCollector) Describe(chan<- *prometheus.Desc) {}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.store.Snapshot() {
		desc := prometheus.NewDesc(m.Name, m.Help, m.LabelNames, nil)
		for _, s := range m.Samples {
			metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Value, s.LabelValues()...)
			if err != nil {
				c.log.Errorf("collector: skipping metric %s: %s", m.Name, err)
				metric = prometheus.NewInvalidMetric(desc, err)
			}
			ch <- metric
		}
	}
}
