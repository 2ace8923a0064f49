package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Debug("router.route.start", "agent", "TriageAgent")
	l.Info("router.route.complete", "hops", 1)
	l.Warn("router.handoff.rejected")
	l.Error("router.route.error", "error", "boom")

	entries := logs.All()
	assert.Len(t, entries, 4)
	assert.Equal(t, "router.route.start", entries[0].Message)
	assert.Equal(t, "TriageAgent", entries[0].ContextMap()["agent"])
	assert.Equal(t, int64(1), entries[1].ContextMap()["hops"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Info("session.create", "session_id", "abc")

	assert.Contains(t, buf.String(), "session.create")
	assert.Contains(t, buf.String(), "session_id=abc")
}

func TestNewZap(t *testing.T) {
	assert.NotNil(t, NewZap(Config{Level: "debug", Format: "console"}))
	assert.NotNil(t, NewZap(Config{Level: "info", Format: "json"}))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))

	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
