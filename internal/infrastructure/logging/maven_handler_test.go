package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 3, 10, 9, 30, 15, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestMavenHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewMavenHandler(&buf, nil)

	err := h.Handle(context.Background(), record(slog.LevelInfo, "Sync complete", slog.Int("imported", 12)))
	require.NoError(t, err)

	// Buffer is not a terminal, so no ANSI codes.
	assert.Equal(t, "[INFO] [09:30:15] Sync complete imported=12\n", buf.String())
}

func TestMavenHandler_SystemBracket(t *testing.T) {
	var buf bytes.Buffer
	h := NewMavenHandler(&buf, nil).WithAttrs([]slog.Attr{slog.String("system", "sync")})

	require.NoError(t, h.Handle(context.Background(), record(slog.LevelWarn, "Retrying")))

	line := buf.String()
	assert.Contains(t, line, "[WARN] [sync]")
	assert.NotContains(t, line, "system=")
}

func TestMavenHandler_LevelFilter(t *testing.T) {
	h := NewMavenHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
