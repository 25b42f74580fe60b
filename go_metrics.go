package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/rcrowley/go-metrics"
)

// Names of the operational stats recorded in a go-metrics registry.
const (
	reaperSweeps            = "reaper.sweeps"
	reaperMetricsReaped     = "reaper.metrics_reaped"
	reaperLabelValuesReaped = "reaper.label_values_reaped"
	reaperFailures          = "reaper.failures"
	reaperSweepTime         = "reaper.sweep_time"

	trackerPolls        = "tracker.polls"
	trackerIOErrors     = "tracker.io_errors"
	trackerFilesTracked = "tracker.files_tracked"
	trackerPollTime     = "tracker.poll_time"

	statsdSamplesSent    = "statsd.samples_sent"
	statsdSamplesDropped = "statsd.samples_dropped"

	httpRequestTime = "http.rq_time"
	httpCodePrefix  = "http.code."
)

var summaryQuantiles = []float64{0.5, 0.9, 0.99}

// goMetricsCollector exposes the metrics of a go-metrics Registry to
// Prometheus.
type goMetricsCollector struct {
	namespace string
	r         metrics.Registry
}

// NewGoMetricsCollector returns an unchecked prometheus.Collector that
// collects every metric of r on each scrape. Metric names are prefixed with
// namespace and have any char Prometheus does not allow replaced with '_'.
// Timers are reported in seconds.
func NewGoMetricsCollector(namespace string, r metrics.Registry) prometheus.Collector {
	return &goMetricsCollector{namespace: namespace, r: r}
}

// Describe sends nothing which makes the collector unchecked, the set of
// metrics in the registry is not known ahead of time.
func (c *goMetricsCollector) Describe(chan<- *prometheus.Desc) {}

func (c *goMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.r.Each(func(name string, i interface{}) {
		fqName := prometheusName(c.namespace, name)
		desc := prometheus.NewDesc(fqName, name, nil, nil)
		switch metric := i.(type) {
		case metrics.Counter:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(metric.Count()))
		case metrics.Gauge:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(metric.Value()))
		case metrics.GaugeFloat64:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, metric.Value())
		case metrics.Timer:
			m := metric.Snapshot()
			ps := m.Percentiles(summaryQuantiles)
			quantiles := make(map[float64]float64, len(ps))
			for i, q := range summaryQuantiles {
				quantiles[q] = ps[i] / float64(time.Second)
			}
			ch <- prometheus.MustNewConstSummary(desc, uint64(m.Count()),
				float64(m.Sum())/float64(time.Second), quantiles)
		case metrics.Histogram:
			m := metric.Snapshot()
			ps := m.Percentiles(summaryQuantiles)
			quantiles := make(map[float64]float64, len(ps))
			for i, q := range summaryQuantiles {
				quantiles[q] = ps[i]
			}
			ch <- prometheus.MustNewConstSummary(desc, uint64(m.Count()), float64(m.Sum()), quantiles)
		case metrics.Meter:
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(metric.Snapshot().Count()))
		default:
			ch <- prometheus.NewInvalidMetric(desc, &unsupportedMetricError{name: name, v: i})
		}
	})
}

type unsupportedMetricError struct {
	name string
	v    interface{}
}

func (e *unsupportedMetricError) Error() string {
	return fmt.Sprintf("stats: unable to collect metric %s of type %T", e.name, e.v)
}

// prometheusName joins namespace and name with '_' and replaces any char
// that is not valid in a Prometheus metric name with '_'.
func prometheusName(namespace, name string) string {
	if namespace != "" {
		name = namespace + "_" + name
	}
	return strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
