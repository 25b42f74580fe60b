package stats

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTTL is the default time after which a metric that is not
	// updated is no longer reported.
	DefaultTTL = 60 * time.Second
	// DefaultPollInterval is the default interval between two polls of the
	// watched directories.
	DefaultPollInterval = 15 * time.Second
	// DefaultListenAddr is the default address metrics are served on.
	DefaultListenAddr = ":8080"
	// DefaultMetricPrefix prefixes the names of the tracked metrics.
	DefaultMetricPrefix = "rocksdb:"
	// DefaultLogLevel is the default logrus level.
	DefaultLogLevel = "info"
	// DefaultUseStatsd use statsd as a stats sink, default is false.
	DefaultUseStatsd = false
	// DefaultStatsdHost is the default address where statsd is running at.
	DefaultStatsdHost = "localhost"
	// DefaultStatsdProtocol is TCP
	DefaultStatsdProtocol = "tcp"
	// DefaultStatsdPort is the default port where statsd is listening at.
	DefaultStatsdPort = 8125
	// DefaultFlushInterval is the default interval between two flushes to
	// statsd.
	DefaultFlushInterval = 10 * time.Second
)

// The Settings type is used to configure sststats. Settings are read from
// an optional YAML file and then from environment variables, an environment
// variable that is set overrides the file.
type Settings struct {
	// Glob patterns of the directories to watch.
	Paths []string `envconfig:"SSTSTATS_PATHS" yaml:"paths"`
	// Time after which a metric that is not updated is no longer reported.
	TTL time.Duration `envconfig:"SSTSTATS_TTL" yaml:"ttl"`
	// Interval between two polls of the watched directories.
	PollInterval time.Duration `envconfig:"SSTSTATS_POLL_INTERVAL" yaml:"pollInterval"`
	// Address metrics are served on.
	ListenAddr string `envconfig:"SSTSTATS_LISTEN_ADDR" yaml:"listenAddr"`
	// Prefix of the tracked metric names.
	MetricPrefix string `envconfig:"SSTSTATS_METRIC_PREFIX" yaml:"metricPrefix"`
	// Extension of the tracked files, including the leading dot.
	FileExtension string `envconfig:"SSTSTATS_FILE_EXTENSION" yaml:"fileExtension"`
	// Log level: debug, info, warn, error.
	LogLevel string `envconfig:"SSTSTATS_LOG_LEVEL" yaml:"logLevel"`
	// Also flush the metrics to statsd.
	UseStatsd bool `envconfig:"USE_STATSD" yaml:"useStatsd"`
	// Address where statsd is running at.
	StatsdHost string `envconfig:"STATSD_HOST" yaml:"statsdHost"`
	// Network protocol used to connect to statsd
	StatsdProtocol string `envconfig:"STATSD_PROTOCOL" yaml:"statsdProtocol"`
	// Port where statsd is listening at.
	StatsdPort int `envconfig:"STATSD_PORT" yaml:"statsdPort"`
	// Flushing interval.
	FlushInterval time.Duration `envconfig:"SSTSTATS_FLUSH_INTERVAL" yaml:"flushInterval"`
	// Log every metric at debug level on each flush when statsd is not used.
	LogSnapshots bool `envconfig:"SSTSTATS_LOG_SNAPSHOTS" yaml:"logSnapshots"`
}

// DefaultSettings returns the Settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		TTL:            DefaultTTL,
		PollInterval:   DefaultPollInterval,
		ListenAddr:     DefaultListenAddr,
		MetricPrefix:   DefaultMetricPrefix,
		FileExtension:  DefaultFileExtension,
		LogLevel:       DefaultLogLevel,
		UseStatsd:      DefaultUseStatsd,
		StatsdHost:     DefaultStatsdHost,
		StatsdProtocol: DefaultStatsdProtocol,
		StatsdPort:     DefaultStatsdPort,
		FlushInterval:  DefaultFlushInterval,
	}
}

// A settingsError is an error in the settings file or environment.
type settingsError struct {
	Source string
	Err    error
}

func (e *settingsError) Error() string {
	return fmt.Sprintf("parsing settings from %s: %s", e.Source, e.Err)
}

func (e *settingsError) Unwrap() error { return e.Err }

// LoadSettings returns the DefaultSettings overridden by the YAML file at
// path, if path is not empty, and then by the environment. The result is not
// validated.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return s, err
		}
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, &settingsError{Source: path, Err: err}
		}
	}
	if err := envconfig.Process("", &s); err != nil {
		return s, &settingsError{Source: "environment", Err: err}
	}
	return s, nil
}

// GetSettings returns the Settings sststats will run with when no settings
// file is given. It panics if an environment variable can not be parsed.
func GetSettings() Settings {
	s, err := LoadSettings("")
	if err != nil {
		panic(err)
	}
	return s
}

// Validate returns an error describing every invalid setting.
func (s *Settings) Validate() error {
	var errs []error
	if len(s.Paths) == 0 {
		errs = append(errs, errors.New("no paths to watch"))
	}
	if s.TTL <= 0 {
		errs = append(errs, fmt.Errorf("ttl must be positive: %s", s.TTL))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive: %s", s.PollInterval))
	}
	if s.ListenAddr == "" {
		errs = append(errs, errors.New("empty listen address"))
	}
	if _, err := logger.ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if s.UseStatsd {
		switch s.StatsdProtocol {
		case "tcp", "udp":
		default:
			errs = append(errs, fmt.Errorf("unsupported statsd protocol: %q", s.StatsdProtocol))
		}
		if s.StatsdPort <= 0 || s.StatsdPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid statsd port: %d", s.StatsdPort))
		}
	}
	if (s.UseStatsd || s.LogSnapshots) && s.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush interval must be positive: %s", s.FlushInterval))
	}
	return errors.Join(errs...)
}
