package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"storage-sync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"trace level", "trace", zerolog.TraceLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"warning level", "warning", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"fatal level", "fatal", zerolog.FatalLevel},
		{"panic level", "panic", zerolog.PanicLevel},
		{"uppercase INFO", "INFO", zerolog.InfoLevel},
		{"unknown defaults to info", "unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.level))
		})
	}
}

func TestInit(t *testing.T) {
	Init(config.LoggerConfig{Level: "debug", Environment: "development"})
	assert.Equal(t, zerolog.DebugLevel, Get().GetLevel())

	Init(config.LoggerConfig{Level: "warn", Environment: "production"})
	assert.Equal(t, zerolog.WarnLevel, Get().GetLevel())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Str("storage_id", "AAAA").Msg("warn message")

	output := buf.String()
	assert.False(t, strings.Contains(output, "debug message"), "debug should be filtered")
	assert.False(t, strings.Contains(output, "info message"), "info should be filtered")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, `"storage_id":"AAAA"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")

	l := Component("reconciler")
	l.Info().Msg("plan computed")

	assert.Contains(t, buf.String(), `"component":"reconciler"`)
	assert.Contains(t, buf.String(), "plan computed")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")

	t.Run("without span", func(t *testing.T) {
		buf.Reset()
		l := FromContext(context.Background())
		l.Info().Msg("no span")
		assert.NotContains(t, buf.String(), "trace_id")
	})

	t.Run("with span", func(t *testing.T) {
		buf.Reset()
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x01, 0x02},
			SpanID:  trace.SpanID{0x03},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		l := FromContext(ctx)
		l.Info().Msg("in span")
		assert.Contains(t, buf.String(), `"trace_id":"`+sc.TraceID().String()+`"`)
		assert.Contains(t, buf.String(), `"span_id":"`+sc.SpanID().String()+`"`)
	})
}

func TestCronAdapter(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")

	a := NewCronAdapter()
	a.Info("schedule", "entry", 1)
	a.Error(errors.New("boom"), "job failed", "entry", 2)

	output := buf.String()
	assert.Contains(t, output, `"component":"scheduler"`)
	assert.Contains(t, output, `"entry":1`)
	assert.Contains(t, output, "boom")
	assert.Contains(t, output, "job failed")
}
