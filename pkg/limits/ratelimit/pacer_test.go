package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPacer_Basic(t *testing.T) {
	pacer := NewPacer(Config{Interval: 100 * time.Millisecond})

	if !pacer.Check("alice").Allowed {
		t.Fatal("Expected first message to be allowed")
	}

	res := pacer.Check("alice")
	if res.Allowed {
		t.Fatal("Expected second message to be rejected")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 100*time.Millisecond {
		t.Errorf("Expected RetryAfter in (0, 100ms], got %v", res.RetryAfter)
	}
	if res.Reason == "" {
		t.Error("Expected a rejection reason")
	}

	// Other users are independent
	if !pacer.Check("bob").Allowed {
		t.Error("Expected other user to be allowed")
	}
}

func TestPacer_AllowsAfterInterval(t *testing.T) {
	pacer := NewPacer(Config{Interval: 50 * time.Millisecond})

	pacer.Check("alice")
	time.Sleep(70 * time.Millisecond)

	if !pacer.Check("alice").Allowed {
		t.Error("Expected message after interval to be allowed")
	}
}

func TestPacer_RejectionDoesNotExtendWindow(t *testing.T) {
	pacer := NewPacer(Config{Interval: 100 * time.Millisecond})

	pacer.Check("alice")
	time.Sleep(60 * time.Millisecond)
	if pacer.Check("alice").Allowed {
		t.Fatal("Expected message inside interval to be rejected")
	}

	// 120ms after the accepted message, 60ms after the rejected one
	time.Sleep(60 * time.Millisecond)
	if !pacer.Check("alice").Allowed {
		t.Error("Expected rejected message not to restart the interval")
	}
}

func TestPacer_Disabled(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
	}{
		{"zero", 0},
		{"negative", -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pacer := NewPacer(Config{Interval: tt.interval})
			for i := 0; i < 5; i++ {
				if !pacer.Check("alice").Allowed {
					t.Fatalf("Expected message %d to be allowed", i)
				}
			}
			if pacer.Tracked() != 0 {
				t.Errorf("Expected no tracked users, got %d", pacer.Tracked())
			}
		})
	}
}

func TestPacer_MaxUsers(t *testing.T) {
	pacer := NewPacer(Config{Interval: time.Minute, MaxUsers: 2})

	pacer.Check("a")
	pacer.Check("b")
	pacer.Check("c")

	if got := pacer.Tracked(); got != 2 {
		t.Errorf("Expected 2 tracked users, got %d", got)
	}
	// "a" was evicted and is accepted early
	if !pacer.Check("a").Allowed {
		t.Error("Expected evicted user to be allowed")
	}
}

func TestPacer_Reset(t *testing.T) {
	pacer := NewPacer(Config{Interval: time.Minute})

	pacer.Check("alice")
	pacer.Reset()

	if !pacer.Check("alice").Allowed {
		t.Error("Expected message after reset to be allowed")
	}
}

func TestPacer_Concurrent(t *testing.T) {
	pacer := NewPacer(Config{Interval: time.Minute})

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pacer.Check("alice").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 1 {
		t.Errorf("Expected exactly 1 concurrent message allowed, got %d", allowed.Load())
	}
}
