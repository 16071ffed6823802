package cache

import (
	"context"
	"time"

	"tftgg/internal/gql"
)

// Meta carries the annotations stored alongside a cached result.
type Meta struct {
	Complexity int
	Tags       []string
	TTL        time.Duration
}

// Entry is a cached result together with its stored annotations.
type Entry struct {
	Data      gql.Result
	Meta      Meta
	RequestID string
	Latency   time.Duration
	CachedAt  time.Time
}

// Cache stores query results keyed by (operation, full argument set).
// Get returns (nil, nil) on a miss; backend failures surface as errors and
// are treated as misses by callers.
type Cache interface {
	Get(ctx context.Context, operation string, args gql.Args) (*Entry, error)
	Set(ctx context.Context, operation string, args gql.Args, data gql.Result, meta Meta, requestID string, latency time.Duration) error

	// Close releases any resources held by the cache
	Close()
}
