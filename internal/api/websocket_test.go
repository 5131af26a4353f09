package api

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthgate/hearthgate/internal/storage"
)

func TestRealtime_PushesSnapshot(t *testing.T) {
	store := &fakeStore{
		overview: storage.OverviewStats{Devices: 1, DNSQueries: 3},
		devices:  []storage.Device{{ID: "01abc", IP: "192.168.1.10"}},
		queries:  []storage.DNSQueryRecord{{Domain: "example.com", QueryType: "A"}},
	}
	srv := newTestServer(t, store, &fakeHealth{ready: true})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snapshot RealtimeSnapshot
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}

	if snapshot.Overview.Devices != 1 || snapshot.Overview.DNSQueries != 3 {
		t.Errorf("Unexpected overview in snapshot: %+v", snapshot.Overview)
	}
	if len(snapshot.Devices) != 1 || snapshot.Devices[0].IP != "192.168.1.10" {
		t.Errorf("Unexpected devices in snapshot: %v", snapshot.Devices)
	}
	if len(snapshot.Queries) != 1 || snapshot.Queries[0].Domain != "example.com" {
		t.Errorf("Unexpected queries in snapshot: %v", snapshot.Queries)
	}
	if snapshot.Ts == "" {
		t.Error("Expected snapshot timestamp")
	}
}
