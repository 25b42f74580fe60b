package stats

import (
	"os"

	logger "github.com/sirupsen/logrus"
)

// Logger is used to log errors and other important operational
// information while using sststats.
//
// The interface is satisfied by both *logrus.Logger and *logrus.Entry.
type Logger interface {
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
}

var _ Logger = (*logger.Logger)(nil)
var _ Logger = (*logger.Entry)(nil)

// NewLogger returns a JSON logger writing to os.Stderr at the given level
// ("debug", "info", "warn", ...).
func NewLogger(level string) (*logger.Logger, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logger.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logger.JSONFormatter{})
	log.SetLevel(lvl)
	return log, nil
}

func defaultLogger() Logger {
	return logger.StandardLogger().WithField("logger", "sststats")
}
