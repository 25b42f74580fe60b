package stats

import (
	"fmt"
	"sync"
)

type discardLogger struct{}

func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Debugf(string, ...interface{}) {}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, format string, args ...interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: fmt.Sprintf(format, args...)})
	l.mu.Unlock()
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) { l.log("error", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...interface{})  { l.log("warn", format, args...) }
func (l *recordingLogger) Infof(format string, args ...interface{})  { l.log("info", format, args...) }
func (l *recordingLogger) Debugf(format string, args ...interface{}) { l.log("debug", format, args...) }

func (l *recordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *recordingLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.level == level {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}
