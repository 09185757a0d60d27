// Package tracing records per-request span trees for the search pipeline.
// A root span is opened by the HTTP layer; lower layers open children with
// StartChild, which is a no-op when the context carries no span. Trees are
// written to slog only for slow requests.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
)

type contextKey struct{}

// Span is a timed stage. A nil *Span is valid and records nothing.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
	now      func() time.Time
}

// StartRoot opens a root span. The trace id is the request id when one is
// in ctx, otherwise a fresh uuid.
func StartRoot(ctx context.Context, name string) (context.Context, *Span) {
	id := logger.RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	s := &Span{Name: name, TraceID: id, Start: time.Now(), now: time.Now}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChild opens a child of the span in ctx. Without a parent it returns
// ctx unchanged and a nil span.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: parent.now(), now: parent.now}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) End() {
	if s == nil {
		return
	}
	d := s.now().Sub(s.Start)
	s.mu.Lock()
	s.Duration = d
	s.mu.Unlock()
}

// SetAttr attaches a key/value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

func (s *Span) Children() []*Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// LogIfSlow writes the whole tree at warn level when the span took at least
// threshold. A zero threshold disables logging. It reports whether it logged.
func (s *Span) LogIfSlow(l *slog.Logger, threshold time.Duration) bool {
	if s == nil || threshold <= 0 || s.Duration < threshold {
		return false
	}
	s.log(l, 0)
	return true
}

func (s *Span) log(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	l.Warn("slow span", attrs...)
	for _, c := range children {
		c.log(l, depth+1)
	}
}
