package multiplex

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tftgg/internal/gql"
)

// waitForWaiters polls the snapshot until n callers are attached to key, so
// tests can release a blocked executor only once every caller has joined.
func waitForWaiters(t *testing.T, m *Multiplexer, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Snapshot().Waiters[key] >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never saw %d waiters on %s", n, key)
}

func TestDo_CoalescesConcurrentCalls(t *testing.T) {
	m := New(zerolog.Nop())

	var calls int32
	release := make(chan struct{})
	exec := func(ctx context.Context) (gql.Result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return gql.Result(`"ok"`), nil
	}

	// Two spellings of the same argument set; the key must not depend on
	// map iteration order.
	argSets := []gql.Args{
		{"set": "14", "lang": "en"},
		{"lang": "en", "set": "14"},
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]gql.Result, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Do(context.Background(), "champions", argSets[i%2], exec)
		}(i)
	}

	waitForWaiters(t, m, gql.RequestKey("champions", argSets[0]), n)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("executor invoked %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: unexpected error: %v", i, errs[i])
		}
		if string(results[i]) != `"ok"` {
			t.Errorf("caller %d: result = %s, want \"ok\"", i, results[i])
		}
	}

	if snap := m.Snapshot(); snap.InFlight != 0 {
		t.Errorf("InFlight = %d after settlement, want 0", snap.InFlight)
	}
}

func TestDo_ErrorFanOut(t *testing.T) {
	m := New(zerolog.Nop())

	errUpstream := errors.New("upstream unavailable")
	release := make(chan struct{})
	exec := func(ctx context.Context) (gql.Result, error) {
		<-release
		return nil, errUpstream
	}

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)
	args := gql.Args{"set": "14"}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Do(context.Background(), "tierlist", args, exec)
		}(i)
	}

	waitForWaiters(t, m, gql.RequestKey("tierlist", args), n)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if !errors.Is(errs[i], errUpstream) {
			t.Errorf("caller %d: error = %v, want the shared upstream error", i, errs[i])
		}
	}
}

func TestDo_FreshCallAfterSettlement(t *testing.T) {
	m := New(zerolog.Nop())

	var calls int32
	exec := func(ctx context.Context) (gql.Result, error) {
		atomic.AddInt32(&calls, 1)
		return gql.Result(`1`), nil
	}

	args := gql.Args{"set": "14"}
	for i := 0; i < 2; i++ {
		if _, err := m.Do(context.Background(), "items", args, exec); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("executor invoked %d times for sequential calls, want 2", got)
	}
}

func TestDo_DistinctKeysRunIndependently(t *testing.T) {
	m := New(zerolog.Nop())

	var calls int32
	release := make(chan struct{})
	exec := func(ctx context.Context) (gql.Result, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return gql.Result(`{}`), nil
	}

	var wg sync.WaitGroup
	for _, op := range []string{"champions", "items"} {
		wg.Add(1)
		go func(op string) {
			defer wg.Done()
			if _, err := m.Do(context.Background(), op, nil, exec); err != nil {
				t.Errorf("%s: %v", op, err)
			}
		}(op)
	}

	waitForWaiters(t, m, gql.RequestKey("champions", nil), 1)
	waitForWaiters(t, m, gql.RequestKey("items", nil), 1)

	if snap := m.Snapshot(); snap.InFlight != 2 {
		t.Errorf("InFlight = %d, want 2", snap.InFlight)
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("executor invoked %d times, want 2 for distinct keys", got)
	}
}
