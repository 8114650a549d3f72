package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	interval := 10 * time.Millisecond
	l := NewLimiter(1, interval, time.Minute)

	now := time.Now()
	client := "203.0.113.7"

	expected := []bool{true, false, true, true, false, false}
	steps := []time.Duration{time.Millisecond, interval, interval, time.Millisecond, time.Millisecond, 0}
	for i, exp := range expected {
		if got := l.allow(client, now); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		now = now.Add(steps[i])
	}
}

func TestLimiterWithBurst(t *testing.T) {
	interval := 100 * time.Millisecond
	l := NewLimiter(10, interval, time.Minute)

	now := time.Now()
	client := "203.0.113.7"

	for i := 0; i < 10; i++ {
		if !l.allow(client, now) {
			t.Fatalf("request %d of the burst was rejected", i)
		}
	}
	if l.allow(client, now) {
		t.Fatal("request past the burst was allowed")
	}

	now = now.Add(interval)
	if !l.allow(client, now) {
		t.Fatal("request after one interval was rejected")
	}
	if l.allow(client, now.Add(time.Millisecond)) {
		t.Fatal("second request within the interval was allowed")
	}
}

func TestLimiterClientsAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Hour, time.Minute)
	now := time.Now()

	if !l.allow("a", now) || !l.allow("b", now) {
		t.Fatal("first request of each client must be allowed")
	}
	if l.allow("a", now) {
		t.Fatal("client a exceeded its burst")
	}
}

func TestLimiterSweep(t *testing.T) {
	l := NewLimiter(1, time.Second, 10*time.Minute)
	now := time.Now()

	l.allow("old", now)
	l.allow("recent", now.Add(9*time.Minute))

	l.sweep(now.Add(11 * time.Minute))

	if got := l.Len(); got != 1 {
		t.Fatalf("expected 1 tracked client, got %d", got)
	}
	if _, ok := l.clients["recent"]; !ok {
		t.Fatal("recent client was forgotten")
	}
}
