package ws

import (
	"tftgg/internal/telemetry"
)

// messageTypeStats tags live statistics frames.
const messageTypeStats = "stats"

// StatsMessage is the envelope pushed to live statistics subscribers.
type StatsMessage struct {
	Type  string                  `json:"type"`
	At    int64                   `json:"at"`
	Stats telemetry.StatsSnapshot `json:"stats"`
}

func newStatsMessage(at int64, stats telemetry.StatsSnapshot) *StatsMessage {
	return &StatsMessage{
		Type:  messageTypeStats,
		At:    at,
		Stats: stats,
	}
}
