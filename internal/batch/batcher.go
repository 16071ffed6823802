// Package batch groups shareable queries arriving within a short window into
// a single upstream call. Grouping is keyed by operation plus arguments minus
// the locale field; the cache is consulted per member before the executor
// runs, and per-member results are settled positionally.
//
// The window is fixed, not sliding: it is measured from the first member's
// arrival and later arrivals never extend it. Reaching the maximum group size
// drains the group immediately.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tftgg/internal/cache"
	"tftgg/internal/config"
	"tftgg/internal/gql"
	"tftgg/internal/ident"
	"tftgg/internal/telemetry"
)

// ErrNoResult is returned to a member whose slot resolved to nothing after
// cache and executor resolution. It scopes the failure to that member alone.
var ErrNoResult = errors.New("no result for operation")

// Batcher accumulates shareable requests into per-key groups and drains each
// group through one executor call.
type Batcher struct {
	cfg      *config.BatchConfig
	cacheTTL time.Duration
	store    cache.Cache
	tracer   telemetry.Tracer
	clock    Clock
	logger   zerolog.Logger

	mu     sync.Mutex
	groups map[string]*batchGroup
	closed bool

	hist *history
}

// New creates a Batcher. Nil collaborators fall back to no-ops and the system
// clock; zero config values fall back to the package defaults.
func New(cfg *config.BatchConfig, cacheTTL time.Duration, store cache.Cache, tracer telemetry.Tracer, clk Clock, logger zerolog.Logger) *Batcher {
	cfgCopy := config.BatchConfig{}
	if cfg != nil {
		cfgCopy = *cfg
	}
	if cfgCopy.Window <= 0 {
		cfgCopy.Window = config.DefaultBatchWindow
	}
	if cfgCopy.MaxSize <= 0 {
		cfgCopy.MaxSize = config.DefaultBatchMaxSize
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Duration(config.DefaultCacheTTL) * time.Second
	}
	if store == nil {
		store = cache.NewNoopCache()
	}
	if tracer == nil {
		tracer = telemetry.NopTracer{}
	}
	if clk == nil {
		clk = SystemClock()
	}

	return &Batcher{
		cfg:      &cfgCopy,
		cacheTTL: cacheTTL,
		store:    store,
		tracer:   tracer,
		clock:    clk,
		logger:   logger.With().Str("component", "batcher").Logger(),
		groups:   make(map[string]*batchGroup),
		hist:     newHistory(),
	}
}

// Add routes one request through the batching machinery and blocks until it
// settles. Non-batchable requests (operation off the allow-list, identity
// arguments present, or batching disabled) invoke exec immediately with a
// single-element argument slice and return its first slot untouched.
//
// For batchable requests the push, the size check, and the timer arming run
// as one critical section, so two concurrent first arrivals can never create
// competing timers for one key. The executor and context used for a group's
// drain are those of the member that created the group.
func (b *Batcher) Add(ctx context.Context, operation string, args gql.Args, complexity int, exec Executor) (gql.Result, error) {
	if !b.batchable(operation, args) {
		return b.executeImmediate(ctx, operation, args, exec)
	}

	p := &pendingRequest{
		id:         ident.New(),
		operation:  operation,
		args:       args,
		complexity: complexity,
		arrivedAt:  b.clock.Now(),
		resultChan: make(chan settlement, 1),
	}

	key := gql.BatchKey(operation, args)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return b.executeImmediate(ctx, operation, args, exec)
	}

	g := b.groups[key]
	if g == nil {
		g = &batchGroup{
			id:        ident.New(),
			key:       key,
			operation: operation,
			ctx:       ctx,
			exec:      exec,
			createdAt: p.arrivedAt,
		}
		b.groups[key] = g
	}
	g.members = append(g.members, p)

	var full *batchGroup
	if len(g.members) >= b.cfg.MaxSize {
		b.detachLocked(g)
		full = g
	} else if g.timer == nil {
		g.timer = b.clock.AfterFunc(b.cfg.GetWindowDuration(), func() {
			b.drainOnTimer(g)
		})
	}
	b.mu.Unlock()

	if full != nil {
		go b.executeGroup(full)
	}

	s := <-p.resultChan
	return s.result, s.err
}

// batchable applies the shareability test.
func (b *Batcher) batchable(operation string, args gql.Args) bool {
	if b.cfg.Enabled != nil && !*b.cfg.Enabled {
		return false
	}
	return gql.Batchable(operation, args)
}

// executeImmediate is the bypass path: one executor call for one caller, no
// cache, errors propagate as-is.
func (b *Batcher) executeImmediate(ctx context.Context, operation string, args gql.Args, exec Executor) (gql.Result, error) {
	results, err := exec(ctx, []gql.Args{args})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// detachLocked removes a group from the live map and disarms its timer.
// Callers must hold b.mu.
func (b *Batcher) detachLocked(g *batchGroup) {
	if b.groups[g.key] == g {
		delete(b.groups, g.key)
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// drainOnTimer runs when a group's window elapses. The pointer check guards
// against the group having already been drained by the size trigger, in which
// case the live map holds a fresh group for the key that this timer does not
// own.
func (b *Batcher) drainOnTimer(g *batchGroup) {
	b.mu.Lock()
	if b.groups[g.key] != g {
		b.mu.Unlock()
		return
	}
	delete(b.groups, g.key)
	g.timer = nil
	b.mu.Unlock()

	b.executeGroup(g)
}

// executeGroup drains a detached group: per-member cache lookups in arrival
// order, one executor call for the misses, write-back, and per-member
// settlement. An executor error settles every member with that same error; a
// missing result slot fails only its member.
func (b *Batcher) executeGroup(g *batchGroup) {
	start := b.clock.Now()
	n := len(g.members)

	results := make([]gql.Result, n)
	hits := 0
	missIdx := make([]int, 0, n)
	missArgs := make([]gql.Args, 0, n)

	for i, m := range g.members {
		entry, err := b.store.Get(g.ctx, g.operation, m.args)
		if err != nil {
			b.logger.Warn().Err(err).Str("operation", g.operation).Msg("cache get failed")
		}
		if entry != nil {
			results[i] = entry.Data
			hits++
			b.logger.Debug().
				Str("operation", g.operation).
				Str("requestID", m.id).
				Msg("cache hit (batch)")
			continue
		}
		missIdx = append(missIdx, i)
		missArgs = append(missArgs, m.args)
	}

	b.tracer.TraceBatch(g.operation, len(missArgs), hits)

	var fresh []gql.Result
	var execErr error
	var latency time.Duration
	if len(missArgs) > 0 {
		b.logger.Debug().
			Str("operation", g.operation).
			Int("members", n).
			Int("misses", len(missArgs)).
			Msg("executing batch")

		execStart := b.clock.Now()
		fresh, execErr = g.exec(g.ctx, missArgs)
		latency = b.clock.Now().Sub(execStart)
	}

	if execErr != nil {
		// No partial results exist to attribute, so the failure is not
		// member-isolable.
		for _, m := range g.members {
			m.settle(nil, execErr)
		}
		b.logger.Error().
			Err(execErr).
			Str("operation", g.operation).
			Int("members", n).
			Msg("batch execution failed")
		return
	}

	for j, i := range missIdx {
		var data gql.Result
		if j < len(fresh) {
			data = fresh[j]
		}
		results[i] = data
		if gql.IsMissing(data) {
			continue
		}

		m := g.members[i]
		meta := cache.Meta{
			Complexity: m.complexity,
			Tags:       []string{g.operation},
			TTL:        b.cacheTTL,
		}
		if err := b.store.Set(g.ctx, g.operation, m.args, data, meta, m.id, latency); err != nil {
			b.logger.Warn().Err(err).Str("operation", g.operation).Msg("cache set failed")
		}
	}

	errCount := 0
	for i, m := range g.members {
		if gql.IsMissing(results[i]) {
			errCount++
			m.settle(nil, fmt.Errorf("%w: %s", ErrNoResult, g.operation))
			continue
		}
		m.settle(results[i], nil)
	}

	b.hist.append(Record{
		BatchID:    g.id,
		Members:    n,
		DurationMS: b.clock.Now().Sub(start).Milliseconds(),
		CacheHits:  hits,
		Errors:     errCount,
	})

	b.logger.Debug().
		Str("operation", g.operation).
		Int("members", n).
		Int("hits", hits).
		Int("errors", errCount).
		Msg("batch completed")
}

// PendingSnapshot reports the live groups for monitoring, sorted by key.
func (b *Batcher) PendingSnapshot() []GroupSnapshot {
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]GroupSnapshot, 0, len(b.groups))
	for _, g := range b.groups {
		total := 0
		oldest := now
		for _, m := range g.members {
			total += m.complexity
			if m.arrivedAt.Before(oldest) {
				oldest = m.arrivedAt
			}
		}
		avg := 0.0
		if len(g.members) > 0 {
			avg = float64(total) / float64(len(g.members))
		}
		out = append(out, GroupSnapshot{
			Key:           g.key,
			Operation:     g.operation,
			Size:          len(g.members),
			OldestAgeMS:   now.Sub(oldest).Milliseconds(),
			AvgComplexity: avg,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// HistoryStats returns the aggregate view over retained execution records.
func (b *Batcher) HistoryStats() Stats {
	return b.hist.stats()
}

// Close drains every live group so no pending member is left hanging, then
// stops grouping: later Adds run their executor immediately.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	detached := make([]*batchGroup, 0, len(b.groups))
	for _, g := range b.groups {
		b.detachLocked(g)
		detached = append(detached, g)
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, g := range detached {
		wg.Add(1)
		go func(g *batchGroup) {
			defer wg.Done()
			b.executeGroup(g)
		}(g)
	}
	wg.Wait()

	b.logger.Info().Msg("batcher closed")
}
