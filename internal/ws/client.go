package ws

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tftgg/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// client is a single live statistics subscriber
type client struct {
	conn     *websocket.Conn
	source   telemetry.StatsFunc
	interval time.Duration
	logger   zerolog.Logger

	closeChan chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, source telemetry.StatsFunc, interval time.Duration, logger zerolog.Logger) *client {
	return &client{
		conn:      conn,
		source:    source,
		interval:  interval,
		logger:    logger,
		closeChan: make(chan struct{}),
	}
}

// run starts the client read and write loops
func (c *client) run(ctx context.Context) {
	// Configure connection
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start write goroutine
	go c.writePump(ctx)

	// Read loop (runs in current goroutine)
	c.readPump()
}

// readPump discards inbound frames; the stream is one-way and reading
// only keeps pong and close handling alive
func (c *client) readPump() {
	defer c.Close()

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}
	}
}

// writePump pushes statistics frames on the configured interval and keeps
// the connection alive with pings
func (c *client) writePump(ctx context.Context) {
	stats := time.NewTicker(c.interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		stats.Stop()
		ping.Stop()
		c.Close()
	}()

	// Initial snapshot goes out before the first tick
	if err := c.writeSnapshot(); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		case <-stats.C:
			if err := c.writeSnapshot(); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeSnapshot marshals and sends the current statistics frame
func (c *client) writeSnapshot() error {
	msg := newStatsMessage(time.Now().UnixMilli(), c.source())
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal stats frame")
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the client connection
func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.conn.Close()
		c.logger.Debug().Msg("client closed")
	})
}
