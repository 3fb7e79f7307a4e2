package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when resolving the caller so a log line points
// at the gateway code that emitted it, not at a helper on the way.
var wrapperPackages = []string{
	"github.com/sirupsen/logrus",
	"spotgate/logger.",
	"spotgate/internal/metrics.",
}

type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	var pcs [24]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isWrapperFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isWrapperFrame(fn string) bool {
	for _, prefix := range wrapperPackages {
		if strings.HasPrefix(fn, prefix) {
			return true
		}
	}
	return false
}
