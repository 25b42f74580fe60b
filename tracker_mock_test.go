package stats_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	stats "github.com/lyft/sststats"
	"github.com/lyft/sststats/mock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerIncrements(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := t.TempDir()
	path := filepath.Join(dir, "000001.sst")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0644))

	log, _ := test.NewNullLogger()
	inc := mock.NewMockIncrementer(ctrl)
	labels := stats.PathLabels(dir)

	gomock.InOrder(
		inc.EXPECT().Increment("rocksdb:sst_file_bytes_written", labels, 64.0, gomock.Any()),
		inc.EXPECT().Increment("rocksdb:sst_file_bytes_written", labels, 0.0, gomock.Any()),
		inc.EXPECT().Increment("rocksdb:sst_file_bytes_compacted", labels, 64.0, gomock.Any()),
	)

	tracker := stats.NewTracker(inc, []string{dir}, stats.WithMetricPrefix("rocksdb:"), stats.WithLogger(log))
	require.NoError(t, tracker.Poll())
	require.NoError(t, tracker.Poll())
	require.NoError(t, os.Remove(path))
	require.NoError(t, tracker.Poll())
	assert.Equal(t, 0, tracker.Tracked())
}

func TestTrackerStopsOnIncrementError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.sst"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.sst"), []byte("x"), 0644))

	conflict := &stats.SchemaConflictError{Metric: stats.BytesWrittenMetric}
	inc := mock.NewMockIncrementer(ctrl)
	inc.EXPECT().Increment(stats.BytesWrittenMetric, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(conflict).Times(1)

	log, hook := test.NewNullLogger()
	tracker := stats.NewTracker(inc, []string{dir}, stats.WithLogger(log))
	err := tracker.Poll()
	require.Error(t, err)
	assert.True(t, errors.Is(err, stats.ErrSchemaConflict))

	var target *stats.SchemaConflictError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, stats.BytesWrittenMetric, target.Metric)
	assert.Empty(t, hook.AllEntries())
}
