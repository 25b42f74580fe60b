package stats

import (
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// An Option configures a Store, Reaper, Tracker, Server or Sink. Options that do
// not apply to a component are ignored by it.
type Option interface {
	apply(*options)
}

// optionFunc wraps a func so it satisfies the Option interface.
type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

type options struct {
	now      func() time.Time
	log      Logger
	registry metrics.Registry
	sink     Sink

	prefix    string
	extension string

	statsdHost     string
	statsdPort     int
	statsdProtocol string
}

func newOptions(opts []Option) options {
	o := options{
		now:            time.Now,
		extension:      DefaultFileExtension,
		statsdHost:     DefaultStatsdHost,
		statsdPort:     DefaultStatsdPort,
		statsdProtocol: DefaultStatsdProtocol,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.log == nil {
		o.log = defaultLogger()
	}
	if o.registry == nil {
		o.registry = metrics.NewRegistry()
	}
	if o.sink == nil {
		o.sink = NewNullSink()
	}
	return o
}

// WithClock sets the func used to read the current time, time.Now by
// default.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = now
	})
}

// WithLogger configures the component to use the provided logger otherwise
// the logrus standard logger is used.
func WithLogger(log Logger) Option {
	return optionFunc(func(o *options) {
		o.log = log
	})
}

// WithRegistry sets the go-metrics registry the component records its own
// operational stats in. By default every component has a private registry.
func WithRegistry(r metrics.Registry) Option {
	return optionFunc(func(o *options) {
		o.registry = r
	})
}

// WithSink sets the Sink a Store flushes to, by default a null sink.
func WithSink(sink Sink) Option {
	return optionFunc(func(o *options) {
		o.sink = sink
	})
}

// WithMetricPrefix sets the prefix of the metric names a Tracker increments,
// for example "rocksdb:".
func WithMetricPrefix(prefix string) Option {
	return optionFunc(func(o *options) {
		o.prefix = prefix
	})
}

// WithFileExtension sets the extension, including the leading dot, of the
// files a Tracker tracks. DefaultFileExtension is used by default.
func WithFileExtension(ext string) Option {
	return optionFunc(func(o *options) {
		o.extension = ext
	})
}

// WithStatsdHost sets the host of the statsd sink.
func WithStatsdHost(host string) Option {
	return optionFunc(func(o *options) {
		o.statsdHost = host
	})
}

// WithStatsdProtocol sets the network protocol ("udp" or "tcp") of the statsd
// sink.
func WithStatsdProtocol(protocol string) Option {
	return optionFunc(func(o *options) {
		o.statsdProtocol = protocol
	})
}

// WithStatsdPort sets the port of the statsd sink.
func WithStatsdPort(port int) Option {
	return optionFunc(func(o *options) {
		o.statsdPort = port
	})
}
