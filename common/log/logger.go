// Package log wraps a logrus instance of its own with Debug/Info/Error
// passthroughs. The policy server and fairness controller do not log
// through it; they use the package-level logrus import.
package log

import (
	"github.com/sirupsen/logrus"
)

// Log is this package's logrus instance, separate from logrus's standard
// logger; the passthroughs below write through it. Other packages use the
// package-level logrus import directly for WithFields(...).
var Log = logrus.New()

// AddHook registers a logrus hook against logrus's standard (global)
// logger, e.g. the context hook in common/log/hooks for tagging entries
// with file:line. The hook is not added to Log.
func AddHook(hook logrus.Hook) {
	logrus.AddHook(hook)
}

func Debug(args ...interface{}) {
	Log.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	Log.Debugf(format, args...)
}

func Error(args ...interface{}) {
	Log.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}

func Info(args ...interface{}) {
	Log.Info(args...)
}

func Infof(format string, args ...interface{}) {
	Log.Infof(format, args...)
}
