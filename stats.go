package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	tagspkg "github.com/lyft/sststats/internal/tags"
)

// A Store holds labeled metrics and the time each was last updated.
//
//	s := stats.NewStore()
//	err := s.Increment("bytes_written", stats.PathLabels("/var/db"), 100, "Bytes written.")
//
// Metrics are created on their first Increment and removed by Sweep once
// they have not been updated for longer than a TTL. A Reaper calls Sweep
// periodically. All methods are safe for concurrent use.
type Store interface {
	// Increment adds delta to the value of metric name for the given label
	// values, creating the metric and the label values as needed. The label
	// names of the first Increment become the schema of the metric; a later
	// Increment with different label names returns a *SchemaConflictError
	// and changes nothing. help is only used when the metric is created.
	Increment(name string, labels LabelSet, delta float64, help string) error

	// Sweep removes every metric not updated for longer than ttl before now,
	// then every label value of the remaining metrics not updated for longer
	// than ttl before now.
	Sweep(now time.Time, ttl time.Duration) SweepResult

	// Snapshot returns a point-in-time copy of every metric in the Store
	// ordered by name.
	Snapshot() []MetricSnapshot

	// Len returns the number of metrics in the Store.
	Len() int

	// Flush the current value of every metric to the Sink attached to the
	// Store.
	Flush()

	// Start a timer for periodic flushes. This is a blocking call and should
	// be called in a goroutine.
	Start(*time.Ticker)

	// StartContext starts a timer for periodic flushes. This is a blocking
	// call and should be called in a goroutine.
	//
	// If the passed-in context is cancelled, then this call exits. Flush
	// will be called on exit.
	StartContext(context.Context, *time.Ticker)
}

// ErrSchemaConflict is matched by every *SchemaConflictError.
var ErrSchemaConflict = errors.New("stats: label schema conflict")

// ErrEmptyName is returned when a metric name is empty.
var ErrEmptyName = errors.New("stats: empty metric name")

// A SchemaConflictError is returned by Increment when the label names do not
// match the label names the metric was created with. It indicates a bug in
// the caller.
type SchemaConflictError struct {
	Metric string
	Want   []string
	Got    []string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("stats: metric %q has label names %q: got %q", e.Metric, e.Want, e.Got)
}

func (e *SchemaConflictError) Is(target error) bool {
	return target == ErrSchemaConflict
}

// SweepResult reports what a Sweep removed.
type SweepResult struct {
	Metrics     int // metrics removed with all their label values
	LabelValues int // label values removed from metrics that were kept
}

// Removed returns if the Sweep removed anything.
func (r SweepResult) Removed() bool {
	return r.Metrics != 0 || r.LabelValues != 0
}

// A Sample is the value of a metric for one set of label values.
type Sample struct {
	Labels LabelSet
	Value  float64
}

// LabelValues returns the label values of the sample in schema order.
func (s Sample) LabelValues() []string {
	return s.Labels.Values()
}

// A MetricSnapshot is a copy of a metric taken by Store.Snapshot.
type MetricSnapshot struct {
	Name       string
	Help       string
	LabelNames []string
	Samples    []Sample
}

// NewStore returns an empty Store. WithClock and WithSink apply to a Store.
func NewStore(opts ...Option) Store {
	o := newOptions(opts)
	return &statStore{
		metrics: make(map[string]*metric),
		now:     o.now,
		sink:    o.sink,
	}
}

// labelValue holds the value of a metric for one tuple of label values.
type labelValue struct {
	labels     LabelSet
	value      float64
	lastUpdate time.Time
}

type metric struct {
	help       string
	labelNames []string
	lastUpdate time.Time
	// values is keyed by tagspkg.ValuesKey. A metric without labels has a
	// single value under the empty key whose lastUpdate is never set.
	values map[string]*labelValue
}

func (m *metric) labeled() bool { return len(m.labelNames) != 0 }

type statStore struct {
	// mu guards metrics and every metric reachable from it. Increment and
	// Sweep hold it exclusively so a metric is never removed while it is
	// updated and a value and its timestamp always change together.
	mu      sync.RWMutex
	metrics map[string]*metric

	now  func() time.Time
	sink Sink
}

func (s *statStore) Increment(name string, labels LabelSet, delta float64, help string) error {
	name = tagspkg.SanitizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	key := tagspkg.ValuesKey(labels.Values())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := s.metrics[name]
	if m == nil {
		m = &metric{
			help:       help,
			labelNames: labels.Keys(),
			values:     make(map[string]*labelValue),
		}
		s.metrics[name] = m
	} else if !labels.SameKeys(m.labelNames) {
		return &SchemaConflictError{
			Metric: name,
			Want:   append([]string(nil), m.labelNames...),
			Got:    labels.Keys(),
		}
	}

	v := m.values[key]
	if v == nil {
		v = &labelValue{labels: append(LabelSet(nil), labels...)}
		m.values[key] = v
	}
	v.value += delta
	if m.labeled() {
		v.lastUpdate = now
	}
	m.lastUpdate = now
	return nil
}

func stale(now, lastUpdate time.Time, ttl time.Duration) bool {
	return now.Sub(lastUpdate) > ttl
}

func (s *statStore) Sweep(now time.Time, ttl time.Duration) SweepResult {
	var res SweepResult

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, m := range s.metrics {
		if stale(now, m.lastUpdate, ttl) {
			delete(s.metrics, name)
			res.Metrics++
		}
	}
	for _, m := range s.metrics {
		if !m.labeled() {
			continue
		}
		for key, v := range m.values {
			if stale(now, v.lastUpdate, ttl) {
				delete(m.values, key)
				res.LabelValues++
			}
		}
	}
	return res
}

func (s *statStore) Snapshot() []MetricSnapshot {
	s.mu.RLock()
	snaps := make([]MetricSnapshot, 0, len(s.metrics))
	for name, m := range s.metrics {
		snap := MetricSnapshot{
			Name:       name,
			Help:       m.help,
			LabelNames: append([]string(nil), m.labelNames...),
			Samples:    make([]Sample, 0, len(m.values)),
		}
		for _, v := range m.values {
			snap.Samples = append(snap.Samples, Sample{
				Labels: append(LabelSet(nil), v.labels...),
				Value:  v.value,
			})
		}
		snaps = append(snaps, snap)
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Name < snaps[j].Name
	})
	for _, snap := range snaps {
		sortSamples(snap.Samples)
	}
	return snaps
}

func sortSamples(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		a, b := samples[i].Labels, samples[j].Labels
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k].Value != b[k].Value {
				return a[k].Value < b[k].Value
			}
		}
		return len(a) < len(b)
	})
}

func (s *statStore) Len() int {
	s.mu.RLock()
	n := len(s.metrics)
	s.mu.RUnlock()
	return n
}

func (s *statStore) Flush() {
	snaps := s.Snapshot()
	if snapshotSink, ok := s.sink.(SnapshotSink); ok {
		snapshotSink.FlushSnapshot(snaps)
		return
	}

	for _, m := range snaps {
		for _, sample := range m.Samples {
			s.sink.FlushGauge(m.Name, sample.Labels, sample.Value)
		}
	}

	flushableSink, ok := s.sink.(FlushableSink)
	if ok {
		flushableSink.Flush()
	}
}

func (s *statStore) StartContext(ctx context.Context, ticker *time.Ticker) {
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

func (s *statStore) Start(ticker *time.Ticker) {
	s.StartContext(context.Background(), ticker)
}
