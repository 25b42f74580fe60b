package stats

import (
	"sync/atomic"

	logger "github.com/sirupsen/logrus"

	"github.com/lyft/sststats/internal/stat"
)

type loggingSink struct {
	log     logger.FieldLogger
	flushed int64
}

// NewLoggingSink returns a Sink that logs every flushed value at debug
// level. It exists merely to make the contents of a Store easy to inspect
// when no other sink is configured.
func NewLoggingSink(log logger.FieldLogger) FlushableSink {
	return &loggingSink{log: log.WithField("logger", "sststats.loggingsink")}
}

func (s *loggingSink) FlushGauge(name string, labels LabelSet, value float64) {
	atomic.AddInt64(&s.flushed, 1)
	st := stat.Stat{Type: stat.GaugeStat, Name: name, Tags: labels, Value: value}
	s.log.WithFields(logger.Fields{
		"type":  "gauge",
		"name":  name,
		"value": value,
		"stat":  st.String(),
	}).Debug("flushing gauge")
}

func (s *loggingSink) Flush() {
	n := atomic.SwapInt64(&s.flushed, 0)
	s.log.WithField("count", n).Debug("flushing all stats")
}
