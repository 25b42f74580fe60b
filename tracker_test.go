package stats

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t testing.TB, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644))
}

func sampleValue(t testing.TB, store Store, name, dir string) (float64, bool) {
	t.Helper()
	return findSample(t, store, name, PathLabels(dir).Values()...)
}

func TestTrackerWrittenAndCompacted(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	tracker := NewTracker(store, []string{dir}, WithLogger(discardLogger{}))

	path := filepath.Join(dir, "000001.sst")
	writeFile(t, path, 100)
	require.NoError(t, tracker.Poll())
	v, ok := sampleValue(t, store, BytesWrittenMetric, dir)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	writeFile(t, path, 150)
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesWrittenMetric, dir)
	assert.Equal(t, 150.0, v, "growth is added to the written bytes")

	require.NoError(t, os.Remove(path))
	require.NoError(t, tracker.Poll())
	v, ok = sampleValue(t, store, BytesCompactedMetric, dir)
	require.True(t, ok)
	assert.Equal(t, 150.0, v)
	assert.Equal(t, 0, tracker.Tracked())

	// a forgotten file is not compacted twice
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesCompactedMetric, dir)
	assert.Equal(t, 150.0, v)
}

func TestTrackerNewlyObservedFileCountsFullSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.sst"), 10)
	writeFile(t, filepath.Join(dir, "b.sst"), 20)

	// a fresh tracker has never seen the existing files
	store := NewStore()
	tracker := NewTracker(store, []string{dir}, WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	v, _ := sampleValue(t, store, BytesWrittenMetric, dir)
	assert.Equal(t, 30.0, v)
	assert.Equal(t, 2, tracker.Tracked())
}

func TestTrackerFiltersFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "LOG"), 10)
	writeFile(t, filepath.Join(dir, "MANIFEST-000001"), 10)
	writeFile(t, filepath.Join(dir, "000001.log"), 10)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.sst"), 0755))
	writeFile(t, filepath.Join(dir, "000002.sst"), 7)

	store := NewStore()
	tracker := NewTracker(store, []string{dir}, WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	v, _ := sampleValue(t, store, BytesWrittenMetric, dir)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, 1, tracker.Tracked())

	store = NewStore()
	tracker = NewTracker(store, []string{dir}, WithFileExtension(".log"), WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesWrittenMetric, dir)
	assert.Equal(t, 10.0, v)
}

func TestTrackerMetricPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "000001.sst"), 1)

	store := NewStore()
	tracker := NewTracker(store, []string{dir}, WithMetricPrefix("rocksdb:"), WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	_, ok := sampleValue(t, store, "rocksdb:sst_file_bytes_written", dir)
	assert.True(t, ok)
}

func TestTrackerGlobPatterns(t *testing.T) {
	base := t.TempDir()
	db1 := filepath.Join(base, "db1")
	db2 := filepath.Join(base, "db2")
	require.NoError(t, os.Mkdir(db1, 0755))
	writeFile(t, filepath.Join(db1, "1.sst"), 1)
	writeFile(t, filepath.Join(base, "dbfile"), 1)

	store := NewStore()
	log := &recordingLogger{}
	tracker := NewTracker(store, []string{
		filepath.Join(base, "db*"),
		db1,                          // duplicate of a glob match
		filepath.Join(base, "none*"), // matches nothing
		"[",                          // invalid
	}, WithLogger(log))

	require.NoError(t, tracker.Poll())
	v, _ := sampleValue(t, store, BytesWrittenMetric, db1)
	assert.Equal(t, 1.0, v, "duplicate patterns must not count a directory twice")
	assert.Equal(t, 1, log.Count("error"), "invalid pattern is logged")

	// directories created later are picked up
	require.NoError(t, os.Mkdir(db2, 0755))
	writeFile(t, filepath.Join(db2, "2.sst"), 2)
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesWrittenMetric, db2)
	assert.Equal(t, 2.0, v)
}

func TestTrackerSiblingDirectoriesAreIndependent(t *testing.T) {
	base := t.TempDir()
	db := filepath.Join(base, "db")
	db2 := filepath.Join(base, "db2")
	require.NoError(t, os.Mkdir(db, 0755))
	require.NoError(t, os.Mkdir(db2, 0755))
	writeFile(t, filepath.Join(db2, "1.sst"), 5)

	store := NewStore()
	tracker := NewTracker(store, []string{db, db2}, WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	require.NoError(t, tracker.Poll())

	// db is a prefix of db2 but its polls must not see db2's files as removed
	_, ok := sampleValue(t, store, BytesCompactedMetric, db)
	assert.False(t, ok)
	assert.Equal(t, 1, tracker.Tracked())
}

func TestTrackerSchemaConflict(t *testing.T) {
	base := t.TempDir()
	shallow := filepath.Join(base, "db")
	deep := filepath.Join(base, "a", "db")
	require.NoError(t, os.MkdirAll(shallow, 0755))
	require.NoError(t, os.MkdirAll(deep, 0755))
	writeFile(t, filepath.Join(shallow, "1.sst"), 1)
	writeFile(t, filepath.Join(deep, "1.sst"), 1)

	tracker := NewTracker(NewStore(), []string{shallow, deep}, WithLogger(discardLogger{}))
	err := tracker.Poll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaConflict)
}

func TestTrackerStats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1.sst"), 1)
	writeFile(t, filepath.Join(dir, "2.sst"), 1)

	reg := metrics.NewRegistry()
	tracker := NewTracker(NewStore(), []string{dir}, WithRegistry(reg), WithLogger(discardLogger{}))
	require.NoError(t, tracker.Poll())
	require.NoError(t, tracker.Poll())

	assert.Equal(t, int64(2), metrics.GetOrRegisterCounter(trackerPolls, reg).Count())
	assert.Equal(t, int64(2), metrics.GetOrRegisterGauge(trackerFilesTracked, reg).Value())
	assert.Equal(t, int64(2), metrics.GetOrRegisterTimer(trackerPollTime, reg).Count())
	assert.Equal(t, int64(0), metrics.GetOrRegisterCounter(trackerIOErrors, reg).Count())
}

func TestTrackerRunTicks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.sst")
	writeFile(t, path, 1)

	store := NewStore()
	tracker := NewTracker(store, []string{dir}, WithLogger(discardLogger{}))

	ticks := make(chan time.Time, 1)
	ticks <- testEpoch
	close(ticks)
	require.NoError(t, tracker.RunTicks(context.Background(), ticks))

	// one immediate poll plus one per tick, all for an unchanged file
	v, _ := sampleValue(t, store, BytesWrittenMetric, dir)
	assert.Equal(t, 1.0, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tracker.Run(ctx, time.Hour))
}

// A directory that stops receiving writes is reaped while the metric stays
// registered for directories that are still active.
func TestTrackerEndToEnd(t *testing.T) {
	const ttl = time.Minute

	base := t.TempDir()
	idle := filepath.Join(base, "idle")
	active := filepath.Join(base, "active")
	require.NoError(t, os.Mkdir(idle, 0755))
	require.NoError(t, os.Mkdir(active, 0755))

	clock := newTestClock()
	store := NewStore(WithClock(clock.Now))
	tracker := NewTracker(store, []string{filepath.Join(base, "*")}, WithLogger(discardLogger{}))
	reaper := NewReaper(store, ttl, WithClock(clock.Now), WithLogger(discardLogger{}))

	idleFile := filepath.Join(idle, "f.sst")
	writeFile(t, idleFile, 100)
	writeFile(t, filepath.Join(active, "g.sst"), 10)
	require.NoError(t, tracker.Poll())

	v, _ := sampleValue(t, store, BytesWrittenMetric, idle)
	assert.Equal(t, 100.0, v)

	writeFile(t, idleFile, 150)
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesWrittenMetric, idle)
	assert.Equal(t, 150.0, v)

	require.NoError(t, os.Remove(idleFile))
	require.NoError(t, tracker.Poll())
	v, _ = sampleValue(t, store, BytesCompactedMetric, idle)
	assert.Equal(t, 150.0, v)

	clock.Add(ttl / 2)
	require.NoError(t, tracker.Poll())
	clock.Add(ttl/2 + time.Second)

	res, err := reaper.Tick()
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Metrics: 1, LabelValues: 1}, res)

	_, ok := sampleValue(t, store, BytesWrittenMetric, idle)
	assert.False(t, ok, "idle directory should have been reaped")
	_, ok = sampleValue(t, store, BytesCompactedMetric, idle)
	assert.False(t, ok, "compacted metric should have been reaped")
	v, ok = sampleValue(t, store, BytesWrittenMetric, active)
	assert.True(t, ok, "active directory must be kept")
	assert.Equal(t, 10.0, v)
}
