package expiration

import (
	"testing"
	"time"
)

func TestFixedWindowBoundary(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	var s FixedWindow

	exp := s.ExpireAt(start, 10*time.Second)
	if !exp.Equal(start.Add(10 * time.Second)) {
		t.Fatalf("expected expiry at start+10s, got %v", exp)
	}

	if s.IsExpired(exp, start.Add(9999*time.Millisecond)) {
		t.Fatalf("entry should be fresh just before expiry")
	}
	if !s.IsExpired(exp, exp) {
		t.Fatalf("entry should be stale exactly at expiry")
	}
	if !s.IsExpired(exp, exp.Add(time.Second)) {
		t.Fatalf("entry should be stale after expiry")
	}
}

func TestFixedWindowNegativeTTL(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	var s FixedWindow

	exp := s.ExpireAt(start, -time.Second)
	if !exp.Equal(start) {
		t.Fatalf("negative ttl should clamp to zero, got %v", exp)
	}
	if !s.IsExpired(exp, start) {
		t.Fatalf("zero ttl entry should be stale immediately")
	}
}

func TestManualClock(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewManualClock(start)

	c.Advance(5 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("expected start+5s, got %v", got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("expected start, got %v", got)
	}
}
