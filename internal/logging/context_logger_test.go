package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestAttrsMergeAndOverride(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("app", "memo"))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("expected component overridden in place, got %v", attrs[0])
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithTelemetry(ctx, "trace-1", "")
	Debug(ctx, "cache miss", slog.String("cache", "balances"))

	out := buf.String()
	for _, want := range []string{"cache miss", "trace_id=trace-1", "cache=balances", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "json"))

	Info(ctx, "hidden")
	Warn(ctx, "shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("expected json warn record, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("nonsense") != slog.LevelInfo {
		t.Fatalf("unknown level should default to info")
	}
	if ParseLevel("ERROR") != slog.LevelError {
		t.Fatalf("expected error level")
	}
}
