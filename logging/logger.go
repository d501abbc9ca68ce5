package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// InitLogger configures the process-wide logger writing to stdout and the
// given directory. Call once from main before any component starts.
func InitLogger(logDirPath string) {
	config := zap.NewProductionConfig()

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		if level, err := zapcore.ParseLevel(logLevel); err == nil {
			config.Level.SetLevel(level)
		}
	}

	if err := os.MkdirAll(logDirPath, 0o755); err != nil {
		panic(err)
	}

	logFilePath := filepath.Join(logDirPath, "sentinel.log")
	errorFilePath := filepath.Join(logDirPath, "sentinel_error.log")
	for _, p := range []string{logFilePath, errorFilePath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			file, err := os.Create(p)
			if err != nil {
				panic(err)
			}
			file.Close()
		}
	}

	config.OutputPaths = []string{"stdout", logFilePath}
	config.ErrorOutputPaths = []string{"stderr", errorFilePath}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(Log)
}

// InitTestLogger swaps in a no-op logger so package tests stay silent and
// never touch the filesystem.
func InitTestLogger() {
	Log = zap.NewNop()
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// WithContext adds context fields to the logger
func WithContext(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

func Sync() error {
	return Log.Sync()
}
