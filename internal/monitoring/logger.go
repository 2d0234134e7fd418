package monitoring

import (
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives high-volume diagnostics such as optimizer fallbacks.
// It is muted until SetDebugLogger or UseZap installs a sink.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces the debug logger. Passing nil will set a no-op logger.
func SetDebugLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = f
}

// ParseLevel maps a level name onto a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// NewZapLogger builds a JSON logger on stderr at the given level.
func NewZapLogger(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// UseZap points Logf and Debugf at a zap logger. The caller owns the
// returned logger and should Sync it before exit.
func UseZap(level string) (*zap.Logger, error) {
	logger, err := NewZapLogger(level)
	if err != nil {
		return nil, err
	}
	Attach(logger)
	return logger, nil
}

// Attach routes the package loggers through an existing zap logger.
func Attach(logger *zap.Logger) {
	if logger == nil {
		SetLogger(nil)
		SetDebugLogger(nil)
		return
	}
	sugar := logger.Sugar()
	SetLogger(sugar.Infof)
	SetDebugLogger(sugar.Debugf)
}
