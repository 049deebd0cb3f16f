package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{Level: level, Output: buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger, buf
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("expected debug/info filtered at warn level, got %q", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Errorf("expected warn message emitted, got %q", output)
	}
}

func TestZapLogger_FieldsAppearInOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.Info("case fetched",
		Field{"case_id", "C-42"},
		Field{"count", 3})

	output := buf.String()
	if !strings.Contains(output, "C-42") || !strings.Contains(output, "case fetched") {
		t.Errorf("expected fields in output, got %q", output)
	}
}

func TestZapLogger_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.WithFields(Field{"component", "gateway"}).Info("ready")

	if !strings.Contains(buf.String(), "gateway") {
		t.Errorf("expected bound field in output, got %q", buf.String())
	}
}

func TestZapLogger_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	logger.WithContext(ctx).Info("handling")

	if !strings.Contains(buf.String(), "req-1") {
		t.Errorf("expected request id in output, got %q", buf.String())
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, InfoLevel)
	SetGlobalLogger(logger)

	Info("global message", Field{"source", "test"})

	if !strings.Contains(buf.String(), "global message") {
		t.Errorf("expected global logger output, got %q", buf.String())
	}
}
