package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestStdLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerWithWriter(&buf, LevelWarn)
	ctx := context.Background()

	l.Debug(ctx, "hidden debug")
	l.Info(ctx, "hidden info")
	l.Warn(ctx, "shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
}

func TestStdLogger_FieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerWithWriter(&buf, LevelDebug)

	l.Error(context.Background(), errors.New("boom"), "failed", map[string]interface{}{"zeta": 1, "alpha": "a"})

	out := buf.String()
	assert.Contains(t, out, "[ERROR] failed | error: boom | alpha=a zeta=1")
}
