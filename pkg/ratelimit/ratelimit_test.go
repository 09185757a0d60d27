package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("fourth request allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other client throttled")
	}

	clock.t = clock.t.Add(20 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("token not refilled after a third of the window")
	}
}

func TestResetAndEvict(t *testing.T) {
	l, clock := newTestLimiter(1, time.Second)
	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("limit of 1 allowed two requests")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("reset did not restore capacity")
	}

	clock.t = clock.t.Add(3 * time.Second)
	if n := l.evictIdle(); n != 1 {
		t.Errorf("evicted %d entries, want 1", n)
	}
}
