package api

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	defer rl.Stop()

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("First two requests should pass")
	}
	if rl.Allow("u1") {
		t.Error("Third request inside the window should be limited")
	}
	if !rl.Allow("u2") {
		t.Error("Other keys have their own budget")
	}

	time.Sleep(80 * time.Millisecond)
	if !rl.Allow("u1") {
		t.Error("Budget should refill after the window")
	}
}
