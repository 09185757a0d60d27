package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
)

func TestStartChildWithoutRootIsNoop(t *testing.T) {
	ctx := context.Background()
	got, span := StartChild(ctx, "lookup")
	if span != nil || got != ctx {
		t.Fatal("expected no span without a root")
	}
	span.SetAttr("k", "v")
	span.End()
	if span.LogIfSlow(slog.Default(), time.Nanosecond) {
		t.Error("nil span must not log")
	}
}

func TestTraceIDFromRequestID(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-42")
	ctx, root := StartRoot(ctx, "search")
	_, child := StartChild(ctx, "lookup")
	if root.TraceID != "req-42" || child.TraceID != "req-42" {
		t.Errorf("trace ids = %q, %q", root.TraceID, child.TraceID)
	}
	if len(root.Children()) != 1 {
		t.Errorf("children = %d", len(root.Children()))
	}
}

func TestLogIfSlow(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx, root := StartRoot(context.Background(), "fuzzy_search")
	root.Start = clock
	root.now = func() time.Time { return clock }

	_, scan := StartChild(ctx, "vocabulary_scan")
	scan.SetAttr("expanded", 3)
	clock = clock.Add(300 * time.Millisecond)
	scan.End()
	root.End()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	if root.LogIfSlow(l, time.Second) {
		t.Error("300ms is under the threshold")
	}
	if root.LogIfSlow(l, 0) {
		t.Error("zero threshold disables logging")
	}
	if !root.LogIfSlow(l, 100*time.Millisecond) {
		t.Fatal("expected slow tree to be logged")
	}
	out := buf.String()
	for _, want := range []string{"span=fuzzy_search", "span=vocabulary_scan", "expanded=3", "depth=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
