package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// statsFrame is one per-second sample pushed to websocket subscribers.
type statsFrame struct {
	UnixMillis int64  `json:"ts"`
	Writes     uint64 `json:"writes"`
	EffectRuns uint64 `json:"effect_runs"`
}

// statsHub samples the bench counters once per second and fans the frames
// out to connected websocket clients.
type statsHub struct {
	counters *benchCounters
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	done  chan struct{}
}

func newStatsHub(counters *benchCounters) *statsHub {
	h := &statsHub{
		counters: counters,
		upgrader: websocket.Upgrader{
			// The bench binds to localhost; skip origin checks.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *statsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *statsHub) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case t := <-ticker.C:
			frame := statsFrame{
				UnixMillis: t.UnixMilli(),
				Writes:     h.counters.writes.Load(),
				EffectRuns: h.counters.effectRun.Load(),
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			h.broadcast(payload)
		}
	}
}

func (h *statsHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *statsHub) close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
