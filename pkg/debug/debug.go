// Package debug provides conditional debug logging for tourkit.
//
// Debug logging is enabled by setting the TOURKIT_DEBUG environment variable:
//
//	TOURKIT_DEBUG=1 tourkit demo
//
// When enabled, debug messages are written to stderr through a zap
// development logger. When disabled (default), Logger returns a no-op zap
// logger and the printf helpers return immediately.
//
// Usage:
//
//	import "github.com/vanderheijden86/tourkit/pkg/debug"
//
//	func myFunc() {
//	    debug.Log("resolving %s", locator)
//	    // ...
//	    debug.LogTiming("myFunc", elapsed)
//	}
package debug

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  = zap.NewNop()
)

func init() {
	if os.Getenv("TOURKIT_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if !e {
		logger = zap.NewNop()
		return
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	l, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
		return
	}
	logger = l.Named("tourkit")
}

// SetLogger replaces the package logger. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	enabled = true
}

// Logger returns the package logger. Components use it as their default
// when no logger is injected.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !Enabled() {
		return
	}
	Logger().Sugar().Debugf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !Enabled() {
		return
	}
	Logger().Debug("timing", zap.String("op", name), zap.Duration("took", d))
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
// Usage:
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	    // ...
//	}
func LogEnterExit(name string) func() {
	if !Enabled() {
		return func() {}
	}
	Logger().Debug("-> " + name)
	start := time.Now()
	return func() {
		Logger().Debug("<- "+name, zap.Duration("took", time.Since(start)))
	}
}

// Dump logs a value with its type for debugging complex structures.
func Dump(name string, v any) {
	if !Enabled() {
		return
	}
	Logger().Debug("dump", zap.String("name", name), zap.Any("value", v))
}
