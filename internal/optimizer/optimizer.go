// Package optimizer ties the multiplexer and the batcher into the single
// execution entry point resolvers call. Identical concurrent requests
// collapse into one in-flight call, and that call joins a batch group with
// its shareable peers before anything reaches the upstream executor.
package optimizer

import (
	"context"

	"tftgg/internal/batch"
	"tftgg/internal/gql"
	"tftgg/internal/multiplex"
)

// Optimizer composes the two layers. Both stay independently usable; the
// optimizer only fixes their order.
type Optimizer struct {
	mux     *multiplex.Multiplexer
	batcher *batch.Batcher
}

func New(mux *multiplex.Multiplexer, batcher *batch.Batcher) *Optimizer {
	return &Optimizer{mux: mux, batcher: batcher}
}

// Execute runs operation through the multiplexer first, so concurrent
// identical calls share one batcher slot, then through the batcher, which
// consults the cache and groups cache misses into one executor call.
func (o *Optimizer) Execute(ctx context.Context, operation string, args gql.Args, complexity int, exec batch.Executor) (gql.Result, error) {
	return o.mux.Do(ctx, operation, args, func(ctx context.Context) (gql.Result, error) {
		return o.batcher.Add(ctx, operation, args, complexity, exec)
	})
}

// MultiplexSnapshot reports the in-flight calls and their waiter counts.
func (o *Optimizer) MultiplexSnapshot() multiplex.Snapshot {
	return o.mux.Snapshot()
}

// PendingBatches reports the groups currently waiting for their window.
func (o *Optimizer) PendingBatches() []batch.GroupSnapshot {
	return o.batcher.PendingSnapshot()
}

// BatchHistory reports aggregate stats over recently drained batches.
func (o *Optimizer) BatchHistory() batch.Stats {
	return o.batcher.HistoryStats()
}

// Close drains pending batch groups. In-flight multiplexed calls settle
// through their drained groups; later calls run on the immediate path.
func (o *Optimizer) Close() {
	o.batcher.Close()
}

// Single adapts an executor that resolves one argument set at a time into
// the batch contract. Only the first argument set is resolved; surplus
// members of the same drain settle as missing slots. Use it for executors
// that cannot batch natively, such as plugin-backed operations.
func Single(fn func(ctx context.Context, args gql.Args) (gql.Result, error)) batch.Executor {
	return func(ctx context.Context, argSets []gql.Args) ([]gql.Result, error) {
		if len(argSets) == 0 {
			return nil, nil
		}
		res, err := fn(ctx, argSets[0])
		if err != nil {
			return nil, err
		}
		return []gql.Result{res}, nil
	}
}
