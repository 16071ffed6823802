// Package multiplex coalesces concurrent identical queries into a single
// executor invocation. Callers asking for the same operation with the same
// arguments while a call is in flight all receive that call's outcome.
package multiplex

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"tftgg/internal/gql"
)

// Executor performs the real work for one coalesced call.
type Executor func(ctx context.Context) (gql.Result, error)

// inFlightCall is the shared state for one running invocation. result and err
// are written before done is closed; waiters read them only after done.
type inFlightCall struct {
	operation string
	waiters   int
	result    gql.Result
	err       error
	done      chan struct{}
}

// Multiplexer tracks in-flight calls by request key.
type Multiplexer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightCall
	logger   zerolog.Logger
}

// New creates a Multiplexer.
func New(logger zerolog.Logger) *Multiplexer {
	return &Multiplexer{
		inFlight: make(map[string]*inFlightCall),
		logger:   logger.With().Str("component", "multiplexer").Logger(),
	}
}

// Do runs fn for the given operation and arguments, or attaches to an
// identical call that is already running. Every attached caller receives the
// same result or the same error. The entry is removed before waiters are
// released, so a call arriving after settlement always starts fresh.
//
// A waiter stays attached until the shared call settles even if its own
// context is cancelled; fn runs on the first caller's context.
func (m *Multiplexer) Do(ctx context.Context, operation string, args gql.Args, fn Executor) (gql.Result, error) {
	key := gql.RequestKey(operation, args)

	m.mu.Lock()
	if call, ok := m.inFlight[key]; ok {
		call.waiters++
		waiters := call.waiters
		m.mu.Unlock()

		m.logger.Debug().
			Str("key", key).
			Int("waiters", waiters).
			Msg("joined in-flight call")

		<-call.done
		return call.result, call.err
	}

	call := &inFlightCall{
		operation: operation,
		waiters:   1,
		done:      make(chan struct{}),
	}
	m.inFlight[key] = call
	m.mu.Unlock()

	result, err := fn(ctx)

	m.mu.Lock()
	call.result = result
	call.err = err
	delete(m.inFlight, key)
	m.mu.Unlock()
	close(call.done)

	return result, err
}

// Snapshot reports the current in-flight calls for monitoring.
type Snapshot struct {
	InFlight int            `json:"inFlight"`
	Waiters  map[string]int `json:"waiters"`
}

// Snapshot returns the in-flight count and the waiter count per request key.
func (m *Multiplexer) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiters := make(map[string]int, len(m.inFlight))
	for key, call := range m.inFlight {
		waiters[key] = call.waiters
	}
	return Snapshot{
		InFlight: len(m.inFlight),
		Waiters:  waiters,
	}
}
