package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tftgg/internal/telemetry"
)

func dialHandler(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) StatsMessage {
	t.Helper()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", msgType)
	}

	var msg StatsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return msg
}

func TestServeHTTP_StreamsStatsFrames(t *testing.T) {
	source := func() telemetry.StatsSnapshot {
		return telemetry.StatsSnapshot{
			InFlight:     2,
			Batches:      5,
			AvgBatchSize: 3.5,
			HitRate:      0.4,
		}
	}

	conn := dialHandler(t, NewHandler(source, 20*time.Millisecond, zerolog.Nop()))

	first := readFrame(t, conn)
	if first.Type != "stats" {
		t.Errorf("expected type stats, got %q", first.Type)
	}
	if first.At == 0 {
		t.Error("expected a timestamp on the frame")
	}
	if first.Stats.InFlight != 2 || first.Stats.Batches != 5 {
		t.Errorf("unexpected snapshot: %+v", first.Stats)
	}
	if first.Stats.AvgBatchSize != 3.5 || first.Stats.HitRate != 0.4 {
		t.Errorf("unexpected rates: %+v", first.Stats)
	}
}

func TestServeHTTP_PollsSourceEveryInterval(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	source := func() telemetry.StatsSnapshot {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return telemetry.StatsSnapshot{Batches: calls}
	}

	conn := dialHandler(t, NewHandler(source, 10*time.Millisecond, zerolog.Nop()))

	// The initial frame is sent without waiting for a tick; later frames
	// re-poll the source.
	first := readFrame(t, conn)
	second := readFrame(t, conn)
	if first.Stats.Batches != 1 {
		t.Errorf("expected first frame from call 1, got %d", first.Stats.Batches)
	}
	if second.Stats.Batches != 2 {
		t.Errorf("expected second frame from call 2, got %d", second.Stats.Batches)
	}
}

func TestServeHTTP_ClientCloseStopsPolling(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	source := func() telemetry.StatsSnapshot {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return telemetry.StatsSnapshot{}
	}

	conn := dialHandler(t, NewHandler(source, 5*time.Millisecond, zerolog.Nop()))

	readFrame(t, conn)
	conn.Close()

	// Give the pumps time to notice the closed connection.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	settled := calls
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	after := calls
	mu.Unlock()

	if after != settled {
		t.Errorf("source still polled after close: %d then %d", settled, after)
	}
}
