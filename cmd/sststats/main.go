// Command sststats watches the SST files of RocksDB databases and serves the
// bytes written to and compacted away from each directory as Prometheus
// metrics.
//
//	sststats [options] PATH...
//
// Every PATH is a glob pattern of directories to watch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/rcrowley/go-metrics"
	logger "github.com/sirupsen/logrus"

	stats "github.com/lyft/sststats"
)

var version = "dev"

// cliFlags holds the command line, zero values mean "not given".
type cliFlags struct {
	configPath string
	interval   int // seconds
	port       int
	ttl        int // seconds
	logLevel   string
	paths      []string
}

func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("sststats", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML settings file")
	fs.IntVar(&f.interval, "n", 0, "update interval in `SECONDS` (default: 15)")
	fs.IntVar(&f.interval, "interval", 0, "update interval in `SECONDS` (default: 15)")
	fs.IntVar(&f.port, "p", 0, "`PORT` to serve metrics to Prometheus (default: 8080)")
	fs.IntVar(&f.port, "port", 0, "`PORT` to serve metrics to Prometheus (default: 8080)")
	fs.IntVar(&f.ttl, "t", 0, "interval in `SECONDS` after which a metric is no longer reported when not updated (default: 60)")
	fs.IntVar(&f.ttl, "ttl", 0, "interval in `SECONDS` after which a metric is no longer reported when not updated (default: 60)")
	fs.StringVar(&f.logLevel, "log-level", "", "log `LEVEL`: debug, info, warn or error (default: info)")
	showVersion := fs.Bool("version", false, "print the version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: sststats [options] PATH...

Feed RocksDB SST file metrics into Prometheus. Every PATH is a glob pattern
of the directories to watch.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Fprintf(output, "sststats version %s\n", version)
		return nil, flag.ErrHelp
	}
	for name, v := range map[string]int{"interval": f.interval, "port": f.port, "ttl": f.ttl} {
		if v < 0 {
			return nil, fmt.Errorf("invalid value %d for flag -%s", v, name)
		}
	}
	f.paths = fs.Args()
	return &f, nil
}

// loadSettings applies the flags on top of the settings file and the
// environment and validates the result.
func loadSettings(f *cliFlags) (stats.Settings, error) {
	s, err := stats.LoadSettings(f.configPath)
	if err != nil {
		return s, err
	}
	if f.interval != 0 {
		s.PollInterval = time.Duration(f.interval) * time.Second
	}
	if f.port != 0 {
		s.ListenAddr = ":" + strconv.Itoa(f.port)
	}
	if f.ttl != 0 {
		s.TTL = time.Duration(f.ttl) * time.Second
	}
	if f.logLevel != "" {
		s.LogLevel = f.logLevel
	}
	if len(f.paths) != 0 {
		s.Paths = f.paths
	}
	return s, s.Validate()
}

func newSink(s stats.Settings, log *logger.Logger, registry metrics.Registry) stats.FlushableSink {
	switch {
	case s.UseStatsd:
		return stats.NewNetSink(
			stats.WithStatsdHost(s.StatsdHost),
			stats.WithStatsdPort(s.StatsdPort),
			stats.WithStatsdProtocol(s.StatsdProtocol),
			stats.WithLogger(log.WithField("logger", "sststats.netsink")),
			stats.WithRegistry(registry),
		)
	case s.LogSnapshots:
		return stats.NewLoggingSink(log)
	default:
		return nil
	}
}

// run serves metrics until ctx is cancelled or the tracker fails.
func run(ctx context.Context, s stats.Settings, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entry := log.WithField("logger", "sststats")
	registry := metrics.NewRegistry()
	sink := newSink(s, log, registry)

	var storeOpts []stats.Option
	if sink != nil {
		storeOpts = append(storeOpts, stats.WithSink(sink))
	}
	store := stats.NewStore(storeOpts...)

	gatherer := prometheus.NewRegistry()
	if err := gatherer.Register(stats.NewCollector(store, stats.WithLogger(entry))); err != nil {
		return err
	}
	if err := gatherer.Register(stats.NewGoMetricsCollector("sststats", registry)); err != nil {
		return err
	}
	if err := stats.RegisterRuntimeCollectors(gatherer); err != nil {
		return err
	}

	srv := stats.NewServer(s.ListenAddr, gatherer, stats.WithRegistry(registry), stats.WithLogger(entry))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("listening on %s: %w", s.ListenAddr, err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			entry.Warnf("closing server: %s", err)
		}
	}()

	var wg sync.WaitGroup
	reaper := stats.NewReaper(store, s.TTL,
		stats.WithLogger(entry), stats.WithRegistry(registry))
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	if sink != nil {
		ticker := time.NewTicker(s.FlushInterval)
		defer ticker.Stop()
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.StartContext(ctx, ticker)
		}()
	}

	tracker := stats.NewTracker(store, s.Paths,
		stats.WithMetricPrefix(s.MetricPrefix),
		stats.WithFileExtension(s.FileExtension),
		stats.WithLogger(entry),
		stats.WithRegistry(registry),
	)
	entry.Infof("watching %q every %s, metrics expire after %s", s.Paths, s.PollInterval, s.TTL)
	err := tracker.Run(ctx, s.PollInterval)

	cancel()
	wg.Wait()
	if c, ok := sink.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			entry.Warnf("closing sink: %s", cerr)
		}
	}
	return err
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	s, err := loadSettings(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(2)
	}

	log, err := stats.NewLogger(s.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, log); err != nil {
		log.WithError(err).Error("sststats stopped")
		stop()
		os.Exit(1)
	}
	log.Info("sststats stopped")
}
