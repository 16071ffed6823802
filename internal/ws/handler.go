package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tftgg/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler upgrades HTTP requests to WebSocket connections streaming
// optimizer statistics
type Handler struct {
	source   telemetry.StatsFunc
	interval time.Duration
	logger   zerolog.Logger
}

// NewHandler creates a new live statistics handler
func NewHandler(source telemetry.StatsFunc, interval time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	h.logger.Info().
		Str("remoteAddr", r.RemoteAddr).
		Msg("new live stats connection")

	client := newClient(conn, h.source, h.interval, h.logger.With().Str("remoteAddr", r.RemoteAddr).Logger())
	client.run(r.Context())
}
