package stats

import (
	"testing"
)

func TestNullSink(t *testing.T) {
	sink := NewNullSink()
	store := NewStore(WithSink(sink))
	if err := store.Increment("written", PathLabels("/db"), 1, ""); err != nil {
		t.Fatal(err)
	}
	// must not panic or block
	store.Flush()
	sink.Flush()
}

func TestDefaultSinkIsNull(t *testing.T) {
	o := newOptions(nil)
	if _, ok := o.sink.(nullSink); !ok {
		t.Errorf("default sink: want: %T got: %T", nullSink{}, o.sink)
	}
}

type snapshotRecorder struct {
	gauges    int
	flushes   int
	snapshots [][]MetricSnapshot
}

func (r *snapshotRecorder) FlushGauge(string, LabelSet, float64) { r.gauges++ }
func (r *snapshotRecorder) Flush()                               { r.flushes++ }

func (r *snapshotRecorder) FlushSnapshot(snaps []MetricSnapshot) {
	r.snapshots = append(r.snapshots, snaps)
}

func TestStoreFlushSnapshotSink(t *testing.T) {
	sink := &snapshotRecorder{}
	store := NewStore(WithSink(sink))
	mustIncrement(t, store, "written", dirLabels("db"), 1)
	mustIncrement(t, store, "written", dirLabels("wal"), 2)
	mustIncrement(t, store, "compacted", dirLabels("db"), 3)
	store.Flush()

	if sink.gauges != 0 || sink.flushes != 0 {
		t.Errorf("FlushGauge and Flush must not be called: got %d gauges and %d flushes", sink.gauges, sink.flushes)
	}
	if len(sink.snapshots) != 1 {
		t.Fatalf("FlushSnapshot: want 1 call got: %d", len(sink.snapshots))
	}
	snaps := sink.snapshots[0]
	if len(snaps) != 2 || snaps[0].Name != "compacted" || len(snaps[1].Samples) != 2 {
		t.Errorf("FlushSnapshot: unexpected snapshot: %+v", snaps)
	}
}
