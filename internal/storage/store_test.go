package storage

import (
	"testing"
	"time"

	"github.com/hearthgate/hearthgate/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()

	s := NewStore(cfg)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordConnection(t *testing.T) {
	s := newTestStore(t)

	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 1200, 53000, 800*time.Millisecond)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 80, 400, 9000, 200*time.Millisecond)
	s.RecordConnection("192.168.1.11", "198.51.100.7", 443, 100, 100, 50*time.Millisecond)

	conns := s.RecentConnections(10, "")
	if len(conns) != 3 {
		t.Fatalf("Expected 3 connections, got %d", len(conns))
	}
	// Newest first.
	if conns[0].DeviceIP != "192.168.1.11" {
		t.Errorf("Expected newest connection first, got %s", conns[0].DeviceIP)
	}

	filtered := s.RecentConnections(10, "192.168.1.10")
	if len(filtered) != 2 {
		t.Errorf("Expected 2 connections for device, got %d", len(filtered))
	}

	limited := s.RecentConnections(1, "")
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(limited))
	}

	ov := s.Overview()
	if ov.Connections != 3 {
		t.Errorf("Expected 3 total connections, got %d", ov.Connections)
	}
	if ov.BytesSent != 1700 || ov.BytesReceived != 62100 {
		t.Errorf("Expected byte totals 1700/62100, got %d/%d", ov.BytesSent, ov.BytesReceived)
	}
	if ov.Devices != 2 {
		t.Errorf("Expected 2 devices, got %d", ov.Devices)
	}
}

func TestStore_RecordDNSQuery(t *testing.T) {
	s := newTestStore(t)

	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", true)
	s.RecordDNSQuery("192.168.1.11", "example.org", "AAAA", "NXDOMAIN", false)

	queries := s.RecentQueries(10, "")
	if len(queries) != 3 {
		t.Fatalf("Expected 3 queries, got %d", len(queries))
	}
	if queries[0].Domain != "example.org" {
		t.Errorf("Expected newest query first, got %s", queries[0].Domain)
	}

	filtered := s.RecentQueries(10, "192.168.1.10")
	if len(filtered) != 2 {
		t.Errorf("Expected 2 queries for client, got %d", len(filtered))
	}
	for _, q := range filtered {
		if q.ClientIP != "192.168.1.10" {
			t.Errorf("Expected only 192.168.1.10 queries, got %s", q.ClientIP)
		}
	}

	ov := s.Overview()
	if ov.DNSQueries != 3 {
		t.Errorf("Expected 3 total queries, got %d", ov.DNSQueries)
	}
	if ov.DNSCacheHits != 1 {
		t.Errorf("Expected 1 cache hit, got %d", ov.DNSCacheHits)
	}
}

func TestStore_OverviewWindows(t *testing.T) {
	s := newTestStore(t)

	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 100, 200, 0)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 10, 20, 0)
	s.RecordConnection("192.168.1.11", "198.51.100.7", 443, 1000, 1000, 0)
	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	s.RecordDNSQuery("192.168.1.10", "example.org", "A", "NOERROR", false)

	// Age one connection and one query out of both windows.
	s.mu.Lock()
	s.connections[0].StartedAt = time.Now().Add(-25 * time.Hour)
	s.queries[0].Ts = time.Now().Add(-25 * time.Hour)
	s.mu.Unlock()

	ov := s.Overview()
	if ov.Connections != 3 {
		t.Errorf("Expected lifetime total of 3 connections, got %d", ov.Connections)
	}
	if ov.ConnectionsLastHour != 2 {
		t.Errorf("Expected 2 connections in the last hour, got %d", ov.ConnectionsLastHour)
	}
	if ov.TrafficBytesToday != 10+20+1000+1000 {
		t.Errorf("Expected 2030 traffic bytes today, got %d", ov.TrafficBytesToday)
	}
	if ov.DNSQueriesToday != 1 {
		t.Errorf("Expected 1 DNS query today, got %d", ov.DNSQueriesToday)
	}
}

func TestStore_HourlyTraffic(t *testing.T) {
	s := newTestStore(t)

	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 100, 200, 0)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 10, 20, 0)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 5000, 5000, 0)

	// Spread the records: one in the previous hour, one outside the window.
	s.mu.Lock()
	s.connections[0].StartedAt = time.Now().Add(-time.Hour)
	s.connections[2].StartedAt = time.Now().Add(-30 * time.Hour)
	s.mu.Unlock()

	buckets := s.HourlyTraffic(24)
	if len(buckets) != 2 {
		t.Fatalf("Expected 2 hourly buckets, got %d", len(buckets))
	}

	// Oldest bucket first.
	if buckets[0].BytesSent != 100 || buckets[0].BytesReceived != 200 || buckets[0].Connections != 1 {
		t.Errorf("Unexpected first bucket: %+v", buckets[0])
	}
	if buckets[1].BytesSent != 10 || buckets[1].BytesReceived != 20 {
		t.Errorf("Unexpected second bucket: %+v", buckets[1])
	}
	if buckets[0].TotalBytes != 300 {
		t.Errorf("Expected total 300, got %d", buckets[0].TotalBytes)
	}
	if !buckets[0].Hour.Before(buckets[1].Hour) {
		t.Errorf("Expected buckets in ascending hour order, got %v then %v", buckets[0].Hour, buckets[1].Hour)
	}
}

func TestStore_TopDomains(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	}
	for i := 0; i < 2; i++ {
		s.RecordDNSQuery("192.168.1.10", "example.org", "A", "NOERROR", false)
	}
	s.RecordDNSQuery("192.168.1.10", "example.net", "A", "NOERROR", false)

	top := s.TopDomains(2)
	if len(top) != 2 {
		t.Fatalf("Expected 2 domains, got %d", len(top))
	}
	if top[0].Domain != "example.com" || top[0].Count != 3 {
		t.Errorf("Expected example.com x3 first, got %s x%d", top[0].Domain, top[0].Count)
	}
	if top[1].Domain != "example.org" || top[1].Count != 2 {
		t.Errorf("Expected example.org x2 second, got %s x%d", top[1].Domain, top[1].Count)
	}
}

func TestStore_DeviceUpsert(t *testing.T) {
	s := newTestStore(t)

	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 0, 0, 0)

	devices := s.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.IP != "192.168.1.10" {
		t.Errorf("Expected IP 192.168.1.10, got %s", d.IP)
	}
	if d.ID == "" {
		t.Error("Expected device to get an ID")
	}
	if d.LastSeen.Before(d.FirstSeen) {
		t.Error("Expected LastSeen >= FirstSeen")
	}
}

func TestStore_RenameDevice(t *testing.T) {
	s := newTestStore(t)

	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	id := s.Devices()[0].ID

	d, err := s.RenameDevice(id, "laptop")
	if err != nil {
		t.Fatalf("RenameDevice failed: %v", err)
	}
	if d.Name != "laptop" {
		t.Errorf("Expected name laptop, got %s", d.Name)
	}
	if s.Devices()[0].Name != "laptop" {
		t.Error("Expected rename to persist in store")
	}

	if _, err := s.RenameDevice("does-not-exist", "x"); err == nil {
		t.Error("Expected error for unknown device")
	}
}

func TestStore_PersistenceAcrossReopen(t *testing.T) {
	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()

	s := NewStore(cfg)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	s.RecordConnection("192.168.1.10", "93.184.216.34", 443, 10, 20, time.Second)
	id := s.Devices()[0].ID
	if _, err := s.RenameDevice(id, "laptop"); err != nil {
		t.Fatalf("RenameDevice failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := NewStore(cfg)
	if err := s2.Open(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	devices := s2.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device after reopen, got %d", len(devices))
	}
	if devices[0].Name != "laptop" || devices[0].ID != id {
		t.Errorf("Expected renamed device to survive reopen, got %+v", devices[0])
	}

	ov := s2.Overview()
	if ov.Connections != 1 || ov.DNSQueries != 1 {
		t.Errorf("Expected counters to survive reopen, got %+v", ov)
	}
	if len(s2.RecentQueries(10, "")) != 1 {
		t.Error("Expected recent queries to survive reopen")
	}
	if top := s2.TopDomains(5); len(top) != 1 || top[0].Domain != "example.com" {
		t.Errorf("Expected top domains to survive reopen, got %v", top)
	}
}

func TestStore_RecentWindowIsBounded(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < maxRecentRecords+50; i++ {
		s.RecordDNSQuery("192.168.1.10", "example.com", "A", "NOERROR", false)
	}

	if got := len(s.queries); got != maxRecentRecords {
		t.Errorf("Expected query window capped at %d, got %d", maxRecentRecords, got)
	}

	ov := s.Overview()
	if ov.DNSQueries != int64(maxRecentRecords+50) {
		t.Errorf("Expected total to keep counting, got %d", ov.DNSQueries)
	}
}
