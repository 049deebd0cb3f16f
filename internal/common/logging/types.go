// Package logging defines the structured logging surface used across the
// service and a zap-backed implementation of it.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// Field is one structured key-value pair attached to a log entry.
// Call sites construct these positionally: Field{"case_id", id}.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the logging surface the rest of the service depends on.
// Error takes the error as its own argument so every implementation
// attaches it under a consistent key.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names fall back to
// InfoLevel rather than failing, so a typo in LOG_LEVEL cannot silence logs.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LogConfig holds logger construction settings. A nil Output means stdout.
type LogConfig struct {
	Level  LogLevel
	Output io.Writer
	Prefix string
}

// DefaultLogConfig builds a config from the LOG_LEVEL environment variable.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	}
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, lazily constructing a
// default one so components created before InitGlobalLogger still log.
func GetGlobalLogger() Logger {
	initOnce.Do(func() {
		globalLogger = NewDefaultLogger()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Package-level helpers over the global logger.

func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
