package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthgate/hearthgate/internal/log"
)

const (
	realtimePushInterval = 2 * time.Second
	realtimeWriteTimeout = 5 * time.Second
	realtimeRecentLimit  = 25
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is LAN-only; the dashboard may be served from another host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Realtime handles GET /ws/realtime: it upgrades the connection and
// pushes a state snapshot every couple of seconds until the client
// disconnects.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Debugf("Realtime client connected: %s", conn.RemoteAddr())

	// Drain control frames so pings and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(realtimePushInterval)
	defer ticker.Stop()

	if err := h.pushSnapshot(conn); err != nil {
		return
	}

	for {
		select {
		case <-done:
			log.Debugf("Realtime client disconnected: %s", conn.RemoteAddr())
			return
		case <-ticker.C:
			if err := h.pushSnapshot(conn); err != nil {
				log.Debugf("Realtime push failed: %v", err)
				return
			}
		}
	}
}

func (h *Handler) pushSnapshot(conn *websocket.Conn) error {
	snapshot := RealtimeSnapshot{
		Ts:          time.Now().Format(time.RFC3339Nano),
		Overview:    h.store.Overview(),
		Devices:     h.store.Devices(),
		Connections: h.store.RecentConnections(realtimeRecentLimit, ""),
		Queries:     h.store.RecentQueries(realtimeRecentLimit, ""),
	}

	_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
	return conn.WriteJSON(snapshot)
}
