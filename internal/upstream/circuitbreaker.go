package upstream

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Successful probes required to close a half-open breaker again.
const halfOpenProbes = 2

// breaker cuts the data service off after consecutive failures and probes it
// again once the recovery timeout has passed.
type breaker struct {
	enabled   bool
	threshold int
	recovery  time.Duration

	mu            sync.Mutex
	state         breakerState
	failures      int
	probeSuccess  int
	lastFailureAt time.Time
}

func newBreaker(enabled bool, threshold int, recovery time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &breaker{enabled: enabled, threshold: threshold, recovery: recovery}
}

// allow reports whether the next request may go out. An open breaker flips
// to half-open once the recovery timeout has elapsed.
func (b *breaker) allow() bool {
	if !b.enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if time.Since(b.lastFailureAt) >= b.recovery {
			b.state = breakerHalfOpen
			b.probeSuccess = 0
			return true
		}
		return false
	case breakerHalfOpen:
		return b.probeSuccess < halfOpenProbes
	default:
		return true
	}
}

func (b *breaker) recordSuccess() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.probeSuccess++
		if b.probeSuccess >= halfOpenProbes {
			b.state = breakerClosed
			b.failures = 0
		}
	case breakerClosed:
		b.failures = 0
	}
}

func (b *breaker) recordFailure() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()

	switch b.state {
	case breakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = breakerOpen
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.probeSuccess = 0
	}
}

// currentState reports the state for the health endpoint.
func (b *breaker) currentState() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
