package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

const (
	// BytesWrittenMetric is incremented by the growth of every tracked file.
	BytesWrittenMetric = "sst_file_bytes_written"
	// BytesCompactedMetric is incremented by the last known size of every
	// tracked file that disappeared.
	BytesCompactedMetric = "sst_file_bytes_compacted"
	// DefaultFileExtension is the extension of the files tracked by default.
	DefaultFileExtension = ".sst"

	bytesWrittenHelp   = "Bytes written to SST files in the directory."
	bytesCompactedHelp = "Bytes of SST files removed from the directory."
)

//go:generate mockgen -destination=mock/incrementer.go -package=mock github.com/lyft/sststats Incrementer

// An Incrementer adds to labeled metrics. Store implements Incrementer.
type Incrementer interface {
	Increment(name string, labels LabelSet, delta float64, help string) error
}

type trackedFile struct {
	dir  string
	size int64
}

// A Tracker watches the files in a set of directories and records how many
// bytes are written to and removed from each directory.
//
// On every Poll each file with the tracked extension adds its growth since
// the previous Poll to BytesWrittenMetric, labeled with the PathLabels of its
// directory. A file seen for the first time adds its full size, even if it
// existed before the Tracker started. A tracked file that disappeared adds
// its last known size to BytesCompactedMetric and is forgotten.
type Tracker struct {
	store     Incrementer
	patterns  []string
	extension string
	written   string
	compacted string
	log       Logger

	mu    sync.Mutex
	files map[string]trackedFile // keyed by absolute file path

	polls        metrics.Counter
	ioErrors     metrics.Counter
	filesTracked metrics.Gauge
	pollTime     metrics.Timer
}

// NewTracker returns a Tracker for the directories matching the glob
// patterns. Patterns are expanded on every Poll so directories created
// later are picked up. WithMetricPrefix, WithFileExtension, WithLogger and
// WithRegistry apply to a Tracker.
func NewTracker(store Incrementer, patterns []string, opts ...Option) *Tracker {
	o := newOptions(opts)
	return &Tracker{
		store:        store,
		patterns:     append([]string(nil), patterns...),
		extension:    o.extension,
		written:      o.prefix + BytesWrittenMetric,
		compacted:    o.prefix + BytesCompactedMetric,
		log:          o.log,
		files:        make(map[string]trackedFile),
		polls:        metrics.GetOrRegisterCounter(trackerPolls, o.registry),
		ioErrors:     metrics.GetOrRegisterCounter(trackerIOErrors, o.registry),
		filesTracked: metrics.GetOrRegisterGauge(trackerFilesTracked, o.registry),
		pollTime:     metrics.GetOrRegisterTimer(trackerPollTime, o.registry),
	}
}

// Tracked returns the number of files currently tracked.
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}

// Poll scans every watched directory once. Directories and files that can
// not be read are logged and skipped until the next Poll. The only error
// returned is one from the Incrementer, which means the Tracker and the
// Store disagree on a metric's labels and is not recoverable.
func (t *Tracker) Poll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	defer t.pollTime.UpdateSince(start)
	t.polls.Inc(1)

	for _, dir := range t.directories() {
		if err := t.pollDir(dir); err != nil {
			return err
		}
	}
	t.filesTracked.Update(int64(len(t.files)))
	return nil
}

// directories returns the absolute paths of the directories matching the
// patterns, without duplicates.
func (t *Tracker) directories() []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, pattern := range t.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			t.log.Errorf("tracker: invalid pattern %q: %s", pattern, err)
			continue
		}
		if len(matches) == 0 {
			t.log.Debugf("tracker: pattern %q matched nothing", pattern)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				t.ioErrors.Inc(1)
				t.log.Warnf("tracker: skipping %s: %s", m, err)
				continue
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
				continue
			}
			dirs = append(dirs, abs)
		}
	}
	return dirs
}

func (t *Tracker) pollDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.ioErrors.Inc(1)
		t.log.Warnf("tracker: skipping directory %s: %s", dir, err)
		return nil
	}
	labels := PathLabels(dir)

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != t.extension {
			continue
		}
		path := filepath.Join(dir, e.Name())
		fi, err := os.Stat(path)
		if err != nil {
			t.ioErrors.Inc(1)
			if !os.IsNotExist(err) {
				// still there, try again next poll
				present[path] = true
				t.log.Warnf("tracker: skipping file %s: %s", path, err)
			}
			continue
		}
		present[path] = true

		size := fi.Size()
		delta := size
		if prev, ok := t.files[path]; ok {
			delta = size - prev.size
		}
		// unchanged files still increment by zero which keeps the
		// directory's label values from expiring
		if err := t.store.Increment(t.written, labels, float64(delta), bytesWrittenHelp); err != nil {
			return fmt.Errorf("tracker: %s: %w", path, err)
		}
		t.files[path] = trackedFile{dir: dir, size: size}
	}

	for path, f := range t.files {
		if f.dir != dir || present[path] {
			continue
		}
		if err := t.store.Increment(t.compacted, labels, float64(f.size), bytesCompactedHelp); err != nil {
			return fmt.Errorf("tracker: %s: %w", path, err)
		}
		delete(t.files, path)
	}
	return nil
}

// Run polls immediately and then every interval until ctx is cancelled or
// a Poll fails. This is a blocking call and should be called in a
// goroutine.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	return t.RunTicks(ctx, ticker.C)
}

// RunTicks polls immediately and then once for every value received from
// ticks until ctx is cancelled, ticks is closed or a Poll fails. A Poll in
// progress always completes before RunTicks returns.
func (t *Tracker) RunTicks(ctx context.Context, ticks <-chan time.Time) error {
	if err := t.Poll(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := t.Poll(); err != nil {
				return err
			}
		}
	}
}
