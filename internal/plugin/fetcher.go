package plugin

import (
	"context"

	"github.com/rs/zerolog"

	"tftgg/internal/gql"
	"tftgg/internal/optimizer"
	"tftgg/internal/upstream"
)

// OptimizedFetcher resolves plugin fetches through the optimizer, so they
// are multiplexed, batched and cached like any resolver call. Fetches always
// resolve against the data service; a plugin cannot call another plugin.
type OptimizedFetcher struct {
	opt    *optimizer.Optimizer
	client *upstream.Client
	logger zerolog.Logger
}

// NewOptimizedFetcher creates the production Fetcher
func NewOptimizedFetcher(opt *optimizer.Optimizer, client *upstream.Client, logger zerolog.Logger) *OptimizedFetcher {
	return &OptimizedFetcher{
		opt:    opt,
		client: client,
		logger: logger.With().Str("component", "plugin-fetcher").Logger(),
	}
}

// Fetch resolves one operation for a running plugin
func (f *OptimizedFetcher) Fetch(ctx context.Context, operation string, args gql.Args, complexity int) (gql.Result, error) {
	if complexity < 1 {
		complexity = 1
	}

	f.logger.Debug().
		Str("operation", operation).
		Int("complexity", complexity).
		Msg("plugin fetch")

	return f.opt.Execute(ctx, operation, args, complexity, f.client.ExecutorFor(operation))
}
