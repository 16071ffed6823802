package upstream

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(true, 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.recordFailure()
	}
	if !b.allow() {
		t.Fatal("breaker opened before the threshold")
	}

	b.recordFailure()
	if b.allow() {
		t.Fatal("breaker still closed after the threshold")
	}
	if b.currentState() != "open" {
		t.Errorf("state = %s, want open", b.currentState())
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newBreaker(true, 3, time.Minute)

	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	b.recordFailure()
	b.recordFailure()

	if !b.allow() {
		t.Error("non-consecutive failures must not open the breaker")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := newBreaker(true, 1, 10*time.Millisecond)

	b.recordFailure()
	if b.allow() {
		t.Fatal("breaker must be open right after the failure")
	}

	time.Sleep(15 * time.Millisecond)
	if !b.allow() {
		t.Fatal("breaker must probe after the recovery timeout")
	}
	if b.currentState() != "half-open" {
		t.Errorf("state = %s, want half-open", b.currentState())
	}

	b.recordSuccess()
	b.recordSuccess()
	if b.currentState() != "closed" {
		t.Errorf("state after %d probe successes = %s, want closed", halfOpenProbes, b.currentState())
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := newBreaker(true, 1, 10*time.Millisecond)

	b.recordFailure()
	time.Sleep(15 * time.Millisecond)
	if !b.allow() {
		t.Fatal("breaker must probe after the recovery timeout")
	}

	b.recordFailure()
	if b.allow() {
		t.Error("a failed probe must reopen the breaker")
	}
}

func TestBreakerDisabled(t *testing.T) {
	b := newBreaker(false, 1, time.Minute)

	for i := 0; i < 10; i++ {
		b.recordFailure()
	}
	if !b.allow() {
		t.Error("a disabled breaker must always allow requests")
	}
}
