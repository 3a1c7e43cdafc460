package monitoring

import (
	log "github.com/sirupsen/logrus"
)

var logger = log.StandardLogger()

// Logf is the package-level diagnostic logger. It defaults to the shared logrus
// logger at info level but may be replaced by SetLogger. Tests or production
// code can redirect or mute it.
var Logf func(format string, v ...interface{}) = logger.Infof

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Logger returns the structured logger shared by the pipeline, store and server.
func Logger() *log.Logger {
	return logger
}

// SetLevel parses a logrus level name such as "debug" or "warn" and applies it.
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Stage returns a log entry tagged with a pipeline stage name.
func Stage(stage string) *log.Entry {
	return logger.WithField("stage", stage)
}
