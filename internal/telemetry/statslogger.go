package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatsSnapshot carries the numbers the periodic stats log reports.
type StatsSnapshot struct {
	InFlight       int     `json:"inFlight"`
	Waiters        int     `json:"waiters"`
	PendingGroups  int     `json:"pendingGroups"`
	PendingMembers int     `json:"pendingMembers"`
	Batches        int     `json:"batches"`
	AvgBatchSize   float64 `json:"avgBatchSize"`
	HitRate        float64 `json:"hitRate"`
	ErrorRate      float64 `json:"errorRate"`
}

// StatsFunc supplies the current snapshot. The server wires it up to the
// optimizer so telemetry stays free of core dependencies.
type StatsFunc func() StatsSnapshot

// StatsLogger periodically logs optimizer statistics.
type StatsLogger struct {
	interval time.Duration
	source   StatsFunc
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatsLogger creates a StatsLogger. A non-positive interval disables it.
func NewStatsLogger(interval time.Duration, source StatsFunc, logger zerolog.Logger) *StatsLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatsLogger{
		interval: interval,
		source:   source,
		logger:   logger.With().Str("component", "stats").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins periodic logging.
func (s *StatsLogger) Start() {
	if s.interval <= 0 || s.source == nil {
		return
	}
	s.wg.Add(1)
	go s.run()
}

func (s *StatsLogger) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.logCurrent()
		}
	}
}

func (s *StatsLogger) logCurrent() {
	snap := s.source()
	s.logger.Info().
		Int("inFlight", snap.InFlight).
		Int("waiters", snap.Waiters).
		Int("pendingGroups", snap.PendingGroups).
		Int("pendingMembers", snap.PendingMembers).
		Int("batches", snap.Batches).
		Float64("avgBatchSize", snap.AvgBatchSize).
		Float64("hitRate", snap.HitRate).
		Float64("errorRate", snap.ErrorRate).
		Msg("optimizer statistics")
}

// Stop ends periodic logging and waits for the loop to exit.
func (s *StatsLogger) Stop() {
	s.cancel()
	s.wg.Wait()
}
