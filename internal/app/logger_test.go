package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevel(t *testing.T) {
	cases := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"", false, true},
		{"bogus", false, true},
	}
	for _, tc := range cases {
		logger := NewLogger(&Config{LogLevel: tc.level})
		assert.Equal(t, tc.debugOn, logger.Enabled(context.Background(), slog.LevelDebug), "level %q debug", tc.level)
		assert.Equal(t, tc.warnOn, logger.Enabled(context.Background(), slog.LevelWarn), "level %q warn", tc.level)
	}
}

func TestLoggerFormat(t *testing.T) {
	text := NewLogger(&Config{LogFormat: "pretty"})
	json := NewLogger(&Config{LogFormat: "json"})
	assert.IsType(t, &slog.TextHandler{}, text.Handler())
	assert.IsType(t, &slog.JSONHandler{}, json.Handler())
}
