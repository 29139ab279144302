package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/toolbridge/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSlogObserver_OnEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	observer := observability.NewSlogObserver(logger)

	event := observability.NewEvent(
		"bridge.request.received",
		observability.LevelInfo,
		"bridge",
		map[string]any{"method": "tools/call"},
	)
	observer.OnEvent(context.Background(), event)

	out := buf.String()
	if !strings.Contains(out, "bridge.request.received") {
		t.Errorf("log output missing event type: %s", out)
	}
	if !strings.Contains(out, "source=bridge") {
		t.Errorf("log output missing source attr: %s", out)
	}
	if !strings.Contains(out, "method=tools/call") {
		t.Errorf("log output missing data attr: %s", out)
	}
}

func TestMultiObserver_FansOut(t *testing.T) {
	var first, second countingObserver

	multi := observability.NewMultiObserver(&first, nil, &second)
	multi.OnEvent(context.Background(), observability.NewEvent("test.event", observability.LevelInfo, "test", nil))

	if first.count != 1 || second.count != 1 {
		t.Errorf("fan-out counts = %d, %d; want 1, 1", first.count, second.count)
	}
}

type countingObserver struct {
	count int
}

func (c *countingObserver) OnEvent(_ context.Context, _ observability.Event) {
	c.count++
}
