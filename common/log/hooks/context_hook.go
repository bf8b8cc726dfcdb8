// Package hooks provides a logrus hook that tags log entries with the
// source file:line of the call site that triggered them.
package hooks

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextHook struct{}

// NewContextHook returns a hook that adds a "file:line" field derived from
// the first stack frame outside logrus and this package.
func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.Contains(frame.File, "common/log/hooks") {
			file := frame.File
			if idx := strings.Index(file, "fairshare/"); idx >= 0 {
				file = file[idx:]
			}
			entry.Data["file:line"] = file + ":" + strconv.Itoa(frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}
