// Package telemetry carries fire-and-forget notifications about gateway
// internals. Tracers must never block or fail the paths that call them.
package telemetry

import "github.com/rs/zerolog"

// Tracer receives batch execution events as they happen.
type Tracer interface {
	// TraceBatch reports one drained batch: how many members reached the
	// upstream and how many were served from cache.
	TraceBatch(operation string, misses, hits int)
}

// LogTracer writes traces to a zerolog logger at debug level.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer creates a tracer on the given logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{
		logger: logger.With().Str("component", "telemetry").Logger(),
	}
}

func (t *LogTracer) TraceBatch(operation string, misses, hits int) {
	t.logger.Debug().
		Str("operation", operation).
		Int("misses", misses).
		Int("hits", hits).
		Msg("batch executed")
}

// NopTracer discards all traces.
type NopTracer struct{}

func (NopTracer) TraceBatch(string, int, int) {}
