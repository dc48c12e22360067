package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func init() {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	))

	zap.ReplaceGlobals(logger)
}

// Debug logs a debug message with alternating key/value
// pairs. Refer to:
// https://godoc.org/go.uber.org/zap#SugaredLogger.Debugw
// for more details.
func Debug(msg string, keysAndValues ...interface{}) {
	zap.S().Debugw(msg, keysAndValues...)
}

// Info logs an info message with alternating key/value
// pairs.
func Info(msg string, keysAndValues ...interface{}) {
	zap.S().Infow(msg, keysAndValues...)
}

// Warn logs a warning message with alternating key/value
// pairs.
func Warn(msg string, keysAndValues ...interface{}) {
	zap.S().Warnw(msg, keysAndValues...)
}

// Error logs an error message with alternating key/value
// pairs.
func Error(msg string, keysAndValues ...interface{}) {
	zap.S().Errorw(msg, keysAndValues...)
}

// Fatal logs a fatal message and exits the process.
func Fatal(msg string, keysAndValues ...interface{}) {
	zap.S().Fatalw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = zap.L().Sync()
}

// SetLevel sets the log level by specifying a string which
// can be any of ["DEBUG", "INFO", "WARNING", "ERROR", "FATAL"],
// case-insensitive.
func SetLevel(lvl string) error {
	switch strings.ToUpper(strings.TrimSpace(lvl)) {
	case "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		level.SetLevel(zapcore.InfoLevel)
	case "WARN", "WARNING":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		level.SetLevel(zapcore.ErrorLevel)
	case "FATAL":
		level.SetLevel(zapcore.FatalLevel)
	default:
		return fmt.Errorf("invalid log level string: %v", lvl)
	}

	return nil
}

// Level returns the current log level.
func Level() zapcore.Level {
	return level.Level()
}
