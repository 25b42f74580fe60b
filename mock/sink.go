package mock

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lyft/sststats/internal/tags"
)

type entry struct {
	val   uint64 // float64 bits
	count int64
}

// A Sink is a mock sink meant for testing that is safe for concurrent use.
//
// Gauges are stored under their statsd name: the metric name followed by
// its labels as serialized by SerializeTags.
type Sink struct {
	store atomic.Value // *sync.Map
	once  sync.Once
}

func (s *Sink) gauges() *sync.Map {
	s.once.Do(func() { s.store.Store(new(sync.Map)) })
	return s.store.Load().(*sync.Map)
}

// NewSink returns a new Sink which implements the stats.FlushableSink
// interface and is suitable for testing.
func NewSink() *Sink {
	s := &Sink{}
	s.gauges() // lazy init
	return s
}

// Flush is a no-op method
func (*Sink) Flush() {}

// Reset removes every gauge from the Sink.
func (s *Sink) Reset() {
	s.gauges() // make sure once has run
	s.store.Store(new(sync.Map))
}

// FlushGauge implements the stats.Sink.FlushGauge method and sets the gauge
// of name and labels to val.
func (s *Sink) FlushGauge(name string, labels tags.TagSet, val float64) {
	gauges := s.gauges()
	key := labels.Serialize(name)
	v, ok := gauges.Load(key)
	if !ok {
		v, _ = gauges.LoadOrStore(key, new(entry))
	}
	p := v.(*entry)
	atomic.StoreUint64(&p.val, math.Float64bits(val))
	atomic.AddInt64(&p.count, 1)
}

// LoadGauge returns the value for stat name and if it was found.
func (s *Sink) LoadGauge(name string) (float64, bool) {
	v, ok := s.gauges().Load(name)
	if ok {
		p := v.(*entry)
		return math.Float64frombits(atomic.LoadUint64(&p.val)), true
	}
	return 0, false
}

// ListGauges returns a list of existing gauge names.
func (s *Sink) ListGauges() (a []string) {
	// may be incoherent if the Sink is concurrently modified
	s.gauges().Range(func(key interface{}, _ interface{}) bool {
		a = append(a, key.(string))
		return true
	})
	return a
}

// Gauges returns all the gauges currently stored by the sink.
func (s *Sink) Gauges() map[string]float64 {
	m := make(map[string]float64)
	s.gauges().Range(func(k, v interface{}) bool {
		p := v.(*entry)
		m[k.(string)] = math.Float64frombits(atomic.LoadUint64(&p.val))
		return true
	})
	return m
}

// Gauge is shorthand for LoadGauge, zero is returned if the stat is not found.
func (s *Sink) Gauge(name string) float64 {
	v, _ := s.LoadGauge(name)
	return v
}

// GaugeCallCount returns the number of times stat name has been flushed.
func (s *Sink) GaugeCallCount(name string) int64 {
	v, ok := s.gauges().Load(name)
	if ok {
		return atomic.LoadInt64(&v.(*entry).count)
	}
	return 0
}

// test helpers

// AssertGaugeEquals asserts that Gauge name is present and has value exp.
func (s *Sink) AssertGaugeEquals(tb testing.TB, name string, exp float64) {
	tb.Helper()
	f, ok := s.LoadGauge(name)
	if !ok {
		tb.Errorf("sststats/mock: Gauge (%q): not found in: %q", name, s.ListGauges())
		return
	}
	if f != exp {
		tb.Errorf("sststats/mock: Gauge (%q): Expected: %g Got: %g", name, exp, f)
	}
}

// AssertGaugeExists asserts that Gauge name exists.
func (s *Sink) AssertGaugeExists(tb testing.TB, name string) {
	tb.Helper()
	if _, ok := s.LoadGauge(name); !ok {
		tb.Errorf("sststats/mock: Gauge (%q): not found in: %q", name, s.ListGauges())
	}
}

// AssertGaugeNotExists asserts that Gauge name does not exist.
func (s *Sink) AssertGaugeNotExists(tb testing.TB, name string) {
	tb.Helper()
	if _, ok := s.LoadGauge(name); ok {
		tb.Errorf("sststats/mock: Gauge (%q): expected Gauge to not exist", name)
	}
}

// AssertGaugeCallCount asserts that Gauge name was flushed exp times.
func (s *Sink) AssertGaugeCallCount(tb testing.TB, name string, exp int) {
	tb.Helper()
	v, ok := s.gauges().Load(name)
	if !ok {
		tb.Errorf("sststats/mock: Gauge (%q): not found in: %q", name, s.ListGauges())
		return
	}
	n := atomic.LoadInt64(&v.(*entry).count)
	if n != int64(exp) {
		tb.Errorf("sststats/mock: Gauge (%q) Call Count: Expected: %d Got: %d",
			name, exp, n)
	}
}

var (
	_ testing.TB = (*fatalTest)(nil)
	_ testing.TB = (*fatalBench)(nil)
)

type fatalTest testing.T

func (t *fatalTest) Errorf(format string, args ...interface{}) {
	t.Fatalf(format, args...)
}

type fatalBench testing.B

func (t *fatalBench) Errorf(format string, args ...interface{}) {
	t.Fatalf(format, args...)
}

// Fatal is a wrapper around *testing.T and *testing.B that causes Sink Assert*
// methods to immediately fail a test and stop execution. Otherwise, the Assert
// methods call tb.Errorf(), which marks the test as failed, but allows
// execution to continue.
//
//	var sink Sink
//	var t *testing.T
//	sink.AssertGaugeEquals(mock.Fatal(t), "name", 1)
func Fatal(tb testing.TB) testing.TB {
	switch t := tb.(type) {
	case *testing.T:
		return (*fatalTest)(t)
	case *testing.B:
		return (*fatalBench)(t)
	default:
		panic(fmt.Sprintf("invalid type for testing.TB: %T", tb))
	}
}

// SerializeTags returns the name a gauge flushed with name and labels is
// stored under.
//
//	s.AssertGaugeEquals(tb, mock.SerializeTags("bytes", stats.PathLabels("/db")), 100)
func SerializeTags(name string, labels tags.TagSet) string {
	return labels.Serialize(name)
}
