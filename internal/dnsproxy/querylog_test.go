package dnsproxy

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestQueryLog_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns.log")

	l, err := NewQueryLog(path)
	if err != nil {
		t.Fatalf("NewQueryLog failed: %v", err)
	}
	defer l.Close()

	events := []QueryEvent{
		{Ts: "2026-01-01T00:00:00Z", Transport: "udp", ClientIP: "192.168.1.10", Domain: "example.com", QueryType: "A", Rcode: "NOERROR", Answers: 1, Result: "ok"},
		{Ts: "2026-01-01T00:00:01Z", Transport: "tcp", ClientIP: "192.168.1.11", Domain: "example.org", QueryType: "AAAA", Rcode: "NXDOMAIN", CacheHit: true, Result: "ok"},
	}
	for _, ev := range events {
		if err := l.Write(ev); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var read []QueryEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev QueryEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("failed to parse line %q: %v", scanner.Text(), err)
		}
		read = append(read, ev)
	}

	if len(read) != len(events) {
		t.Fatalf("Expected %d events, got %d", len(events), len(read))
	}
	if read[0].Domain != "example.com" || read[1].Domain != "example.org" {
		t.Errorf("Expected events in write order, got %v", read)
	}
	if !read[1].CacheHit {
		t.Error("Expected second event to be a cache hit")
	}
}

func TestQueryLog_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns.log")

	l, err := NewQueryLog(path)
	if err != nil {
		t.Fatalf("NewQueryLog failed: %v", err)
	}
	defer l.Close()

	l.maxBytes = 512
	l.maxBackups = 2

	ev := QueryEvent{Ts: "2026-01-01T00:00:00Z", Transport: "udp", ClientIP: "192.168.1.10", Domain: "a-reasonably-long-domain-name.example.com", QueryType: "A", Rcode: "NOERROR", Result: "ok"}
	for i := 0; i < 50; i++ {
		if err := l.Write(ev); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("Expected rotated backup %s.1 to exist: %v", path, err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Errorf("Expected no backup beyond maxBackups")
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat active log: %v", err)
	}
	if st.Size() > l.maxBytes {
		t.Errorf("Expected active log under %d bytes, got %d", l.maxBytes, st.Size())
	}
}
