package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"weft/internal/requestctx"
)

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "ingest")
	logger.Info("batch accepted", String("batch_id", "b-1"), Int("saved", 3))

	out := buf.String()
	if !strings.Contains(out, "ingest: batch accepted") {
		t.Fatalf("component prefix missing: %q", out)
	}
	if !strings.Contains(out, "batch_id=b-1") || !strings.Contains(out, "saved=3") {
		t.Fatalf("attrs missing: %q", out)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger.Info("msg", String("text", "hello world"))

	if !strings.Contains(buf.String(), `text="hello world"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)

	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	ctx := requestctx.WithRequestID(context.Background(), "req-9")
	ctx = requestctx.WithSessionID(ctx, "sess-1")

	WithContext(ctx, logger).Info("touch")

	out := buf.String()
	if !strings.Contains(out, "correlation_id=req-9") {
		t.Fatalf("correlation id missing: %q", out)
	}
	if !strings.Contains(out, "session_id=sess-1") {
		t.Fatalf("session id missing: %q", out)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("parseLevel: got %v", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel: got %v", got)
	}
}

func TestNewNopDoesNotPanic(t *testing.T) {
	NewNop().Info("ignored")
}
