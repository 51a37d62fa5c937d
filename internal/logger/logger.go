package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Components log through the package functions (Debug, Info, Warn, Error) so
// they never carry a logger dependency. The backing zap logger is configured
// once at startup via Init; before Init is called all output is discarded,
// which keeps library consumers quiet by default.

var (
	mu  sync.RWMutex
	log = zap.NewNop().Sugar()
)

// Config controls the logger backend.
type Config struct {
	// Level is the minimum level to emit: DEBUG, INFO, WARN or ERROR
	// (case-insensitive).
	Level string

	// Format selects the output encoding: "text" or "json".
	Format string

	// Output is "stdout", "stderr" or a file path.
	Output string
}

// Init configures the package logger. It is safe to call more than once;
// the last successful call wins.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableStacktrace = true
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Format {
	case "", "text":
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zapCfg.Encoding = "json"
	default:
		return fmt.Errorf("unknown log format: %q", cfg.Format)
	}

	switch cfg.Output {
	case "", "stdout":
		zapCfg.OutputPaths = []string{"stdout"}
	case "stderr":
		zapCfg.OutputPaths = []string{"stderr"}
	default:
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	built, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	log = built.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(s) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}
