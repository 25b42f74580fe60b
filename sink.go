package stats

// A Sink is used by a Store to flush its data.
// These functions may buffer the given data.
type Sink interface {
	FlushGauge(name string, labels LabelSet, value float64)
}

// FlushableSink is an extension of Sink that provides a Flush() function that
// will flush any buffered stats to the underlying store.
type FlushableSink interface {
	Sink
	Flush()
}

// A SnapshotSink receives every metric of a Store at once. Store.Flush calls
// FlushSnapshot instead of FlushGauge and Flush when its Sink implements it.
type SnapshotSink interface {
	FlushableSink
	FlushSnapshot(snaps []MetricSnapshot)
}
