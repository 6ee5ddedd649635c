package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/pity-fox/cleantools/pkg/log"
)

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		"error":      {input: "error", want: slog.LevelError},
		"warn":       {input: "warn", want: slog.LevelWarn},
		"warning":    {input: "WARNING", want: slog.LevelWarn},
		"info":       {input: "Info", want: slog.LevelInfo},
		"debug":      {input: "debug", want: slog.LevelDebug},
		"unknown":    {input: "trace", wantErr: true},
		"empty text": {input: "", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.GetLevel(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, log.ErrUnknownLogLevel)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level   string
		format  string
		wantErr bool
	}{
		"json":       {level: "info", format: "json"},
		"logfmt":     {level: "debug", format: "logfmt"},
		"text":       {level: "warn", format: "text"},
		"bad level":  {level: "loud", format: "json", wantErr: true},
		"bad format": {level: "info", format: "yaml", wantErr: true},
		"mixed case": {level: "INFO", format: "JSON"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			h, err := log.CreateHandlerWithStrings(&buf, tc.level, tc.format)
			if tc.wantErr {
				require.ErrorIs(t, err, log.ErrInvalidArgument)
				assert.Nil(t, h)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, h)

			slog.New(h).Error("rule denied", slog.String("rule", "Temp Cleanup"))
			assert.Contains(t, buf.String(), "rule denied")
			assert.Contains(t, buf.String(), "Temp Cleanup")
		})
	}
}

func TestCreateHandlerJSONLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.CreateHandler(&buf, slog.LevelWarn, log.FormatJSON))
	logger.Info("hidden")
	logger.Warn("shown")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "WARN", record["level"])
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.CreateHandler(&buf, slog.LevelInfo, log.FormatLogfmt))
	ctx := log.NewContext(t.Context(), logger)

	log.WithContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "msg=\"from context\"")

	assert.Equal(t, slog.Default(), log.WithContext(t.Context()))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
	})
	traced := log.WithContext(trace.ContextWithSpanContext(t.Context(), sc))
	assert.NotSame(t, slog.Default(), traced)
}
