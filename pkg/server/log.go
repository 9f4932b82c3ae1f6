package server

import (
	golog "github.com/appscode/go/log"
)

// Logger is the thin seam between the dispatch engine and the logging
// library, so command handlers never import golog directly. verbosity
// is set from cmd/server.go's --verbose flag and is checked locally by V;
// it is not passed on to golog.
type Logger struct {
	verbosity int
}

func newLogger(verbosity int) Logger {
	return Logger{verbosity: verbosity}
}

func (l Logger) Infof(format string, args ...interface{}) {
	golog.Infof(format, args...)
}

func (l Logger) Errorf(format string, args ...interface{}) {
	golog.Errorf(format, args...)
}

// V reports whether a message at the given verbosity level should be
// logged, mirroring golog.V's glog-style leveled logging.
func (l Logger) V(level int) bool {
	return level <= l.verbosity
}

func (l Logger) Debugf(format string, args ...interface{}) {
	if l.V(1) {
		golog.Infof(format, args...)
	}
}
