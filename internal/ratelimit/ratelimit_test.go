package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(10, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Request %d within burst should be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("Request past the burst should be denied")
	}
}

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(100, 1)

	if !l.Allow() {
		t.Fatal("First request should be allowed")
	}
	if l.Allow() {
		t.Fatal("Bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !l.Allow() {
		t.Error("Bucket should have refilled")
	}
}

func TestAllowN(t *testing.T) {
	l := NewLimiter(10, 10)

	if !l.AllowN(10) {
		t.Fatal("Full burst should be allowed at once")
	}
	if l.AllowN(1) {
		t.Error("Bucket should be empty after draining")
	}
}
