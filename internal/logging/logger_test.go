package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(buf, levelVar)), buf
}

func TestConsoleHandlerFormatsComponentPrefix(t *testing.T) {
	logger, buf := newBufferLogger()
	WithComponent(logger, "render-queue").Info("item started", Int64(FieldProjectID, 7))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "INFO render-queue: item started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "project_id=7") {
		t.Fatalf("expected project_id attr in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	logger, buf := newBufferLogger()
	logger.Warn("status update", String("message", "two words"), Error(errors.New("boom failed")))

	line := buf.String()
	if !strings.Contains(line, `message="two words"`) {
		t.Fatalf("expected quoted value, got %q", line)
	}
	if !strings.Contains(line, `error="boom failed"`) {
		t.Fatalf("expected quoted error, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(buf, levelVar))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info suppressed, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("expected warn emitted, got %q", out)
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	logger, buf := newBufferLogger()
	logger.With(slog.Group("progress", slog.Int("current", 3), slog.Int("total", 9))).Info("tick")

	line := buf.String()
	if !strings.Contains(line, "progress.current=3") || !strings.Contains(line, "progress.total=9") {
		t.Fatalf("expected flattened group attrs, got %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
