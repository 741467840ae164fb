// Package logger holds the process-wide zap logger.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	current = zap.NewNop()
	rotator *lumberjack.Logger
)

// Options configures the global logger.
type Options struct {
	Level string
	// Format is "json" (default) or "console" for human readable stdout.
	Format string
	// FilePath additionally writes JSON lines to a rotated file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init installs a stdout logger at level.
func Init(level string) error {
	return InitWithOptions(Options{Level: level})
}

// InitWithOptions replaces the global logger, closing any file opened by a previous call.
func InitWithOptions(opts Options) error {
	level := parseLevel(opts.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)

	stdout := jsonEncoder
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stdout = zapcore.NewConsoleEncoder(consoleCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(stdout, zapcore.Lock(os.Stdout), level)}

	var file *lumberjack.Logger
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(opts.MaxSizeMB, 100),
			MaxBackups: positiveOr(opts.MaxBackups, 5),
			MaxAge:     positiveOr(opts.MaxAgeDays, 30),
			Compress:   opts.Compress,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(file), level))
	}

	next := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	previous := rotator
	current, rotator = next, file
	mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// Logger returns the global logger. It is a no-op logger until Init runs.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithModule returns a child logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// Swap installs l and returns a func restoring the previous logger. Tests use it
// with zaptest/observer.
func Swap(l *zap.Logger) (restore func()) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	previous := current
	current = l
	mu.Unlock()
	return func() {
		mu.Lock()
		current = previous
		mu.Unlock()
	}
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// Close flushes and releases the rotated file, if any.
func Close() error {
	_ = Sync()

	mu.Lock()
	file := rotator
	rotator = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	return file.Close()
}

func parseLevel(level string) zapcore.Level {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
