package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
	"github.com/hearthgate/hearthgate/internal/utils"
)

const (
	devicesFile     = "devices.json"
	connectionsFile = "connections.json"
	queriesFile     = "dns_queries.json"
	countersFile    = "counters.json"

	// maxRecentRecords bounds the in-memory and on-disk windows of
	// connection and DNS query records. Totals keep counting past it.
	maxRecentRecords = 5000

	flushInterval = 5 * time.Second
)

// counters holds the cumulative totals that outlive the recent-record windows.
type counters struct {
	Connections   int64            `json:"connections"`
	DNSQueries    int64            `json:"dns_queries"`
	DNSCacheHits  int64            `json:"dns_cache_hits"`
	BytesSent     int64            `json:"bytes_sent"`
	BytesReceived int64            `json:"bytes_received"`
	DomainCounts  map[string]int64 `json:"domain_counts"`
}

// Store is the gateway's persistent state: observed devices, recent
// connections, recent DNS queries and cumulative counters. State lives
// in memory and is flushed to JSON files in the data directory, so a
// restart picks up where the last run left off.
type Store struct {
	dataDir string

	mu          sync.RWMutex
	devices     map[string]*Device // keyed by IP
	connections []*ConnectionRecord
	queries     []*DNSQueryRecord
	counters    counters
	dirty       bool

	done    chan struct{}
	flushWg sync.WaitGroup
}

func NewStore(cfg *config.Config) *Store {
	return &Store{
		dataDir: cfg.General.DataDir,
		devices: make(map[string]*Device),
		counters: counters{
			DomainCounts: make(map[string]int64),
		},
		done: make(chan struct{}),
	}
}

// Open creates the data directory, loads persisted state and starts the
// background flusher. The store is usable once Open returns.
func (s *Store) Open() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return errors.NewStorageError("failed to create data directory", err)
	}

	if err := s.load(); err != nil {
		return err
	}

	s.flushWg.Add(1)
	go s.flushLoop()

	log.Infof("Storage ready in %s (%d devices, %d recent connections, %d recent queries)",
		s.dataDir, len(s.devices), len(s.connections), len(s.queries))
	return nil
}

// Close stops the flusher and writes any pending state.
func (s *Store) Close() error {
	close(s.done)
	s.flushWg.Wait()
	return s.Flush()
}

// RecordConnection stores one completed proxied connection and updates
// the owning device's last-seen time.
func (s *Store) RecordConnection(deviceIP, dstAddr string, dstPort uint16, sent, received int64, duration time.Duration) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertDeviceLocked(deviceIP, now)

	s.connections = append(s.connections, &ConnectionRecord{
		ID:            utils.NewULID(),
		DeviceIP:      deviceIP,
		DstAddr:       dstAddr,
		DstPort:       dstPort,
		BytesSent:     sent,
		BytesReceived: received,
		DurationMs:    duration.Milliseconds(),
		StartedAt:     now.Add(-duration),
	})
	if len(s.connections) > maxRecentRecords {
		s.connections = s.connections[len(s.connections)-maxRecentRecords:]
	}

	s.counters.Connections++
	s.counters.BytesSent += sent
	s.counters.BytesReceived += received
	s.dirty = true
}

// RecordDNSQuery stores one answered DNS query. It satisfies the DNS
// monitor's recorder interface.
func (s *Store) RecordDNSQuery(clientIP, domain, queryType, rcode string, cached bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertDeviceLocked(clientIP, now)

	s.queries = append(s.queries, &DNSQueryRecord{
		ID:        utils.NewULID(),
		ClientIP:  clientIP,
		Domain:    domain,
		QueryType: queryType,
		Rcode:     rcode,
		Cached:    cached,
		Ts:        now,
	})
	if len(s.queries) > maxRecentRecords {
		s.queries = s.queries[len(s.queries)-maxRecentRecords:]
	}

	s.counters.DNSQueries++
	if cached {
		s.counters.DNSCacheHits++
	}
	if domain != "" {
		s.counters.DomainCounts[domain]++
	}
	s.dirty = true
}

// Devices returns all observed devices, most recently seen first.
func (s *Store) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// RenameDevice sets a device's display name.
func (s *Store) RenameDevice(id, name string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.ID == id {
			d.Name = name
			s.dirty = true
			return *d, nil
		}
	}
	return Device{}, errors.NewStorageError(fmt.Sprintf("device %s not found", id), nil)
}

// RecentConnections returns up to limit connections, newest first.
// A non-empty deviceIP restricts the result to that device.
func (s *Store) RecentConnections(limit int, deviceIP string) []ConnectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ConnectionRecord, 0, limit)
	for i := len(s.connections) - 1; i >= 0 && len(out) < limit; i-- {
		c := s.connections[i]
		if deviceIP != "" && c.DeviceIP != deviceIP {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// RecentQueries returns up to limit DNS queries, newest first.
// A non-empty deviceIP restricts the result to that client.
func (s *Store) RecentQueries(limit int, deviceIP string) []DNSQueryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DNSQueryRecord, 0, limit)
	for i := len(s.queries) - 1; i >= 0 && len(out) < limit; i-- {
		q := s.queries[i]
		if deviceIP != "" && q.ClientIP != deviceIP {
			continue
		}
		out = append(out, *q)
	}
	return out
}

// Overview returns the lifetime totals plus the last-hour and today
// figures computed from the recent-record windows.
func (s *Store) Overview() OverviewStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	hourAgo := now.Add(-time.Hour)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := OverviewStats{
		Devices:       len(s.devices),
		Connections:   s.counters.Connections,
		DNSQueries:    s.counters.DNSQueries,
		DNSCacheHits:  s.counters.DNSCacheHits,
		BytesSent:     s.counters.BytesSent,
		BytesReceived: s.counters.BytesReceived,
	}

	for _, c := range s.connections {
		if c.StartedAt.After(hourAgo) {
			stats.ConnectionsLastHour++
		}
		if !c.StartedAt.Before(dayStart) {
			stats.TrafficBytesToday += c.BytesSent + c.BytesReceived
		}
	}
	for _, q := range s.queries {
		if !q.Ts.Before(dayStart) {
			stats.DNSQueriesToday++
		}
	}
	return stats
}

// HourlyTraffic buckets the recent connections by hour over the last
// `hours` hours, oldest bucket first. Hours with no traffic are omitted.
func (s *Store) HourlyTraffic(hours int) []HourlyTraffic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	buckets := make(map[time.Time]*HourlyTraffic)
	for _, c := range s.connections {
		if c.StartedAt.Before(cutoff) {
			continue
		}
		hour := c.StartedAt.Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &HourlyTraffic{Hour: hour}
			buckets[hour] = b
		}
		b.BytesSent += c.BytesSent
		b.BytesReceived += c.BytesReceived
		b.Connections++
	}

	out := make([]HourlyTraffic, 0, len(buckets))
	for _, b := range buckets {
		b.TotalBytes = b.BytesSent + b.BytesReceived
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// TopDomains returns the most queried domains, highest count first.
func (s *Store) TopDomains(limit int) []DomainCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DomainCount, 0, len(s.counters.DomainCounts))
	for domain, count := range s.counters.DomainCounts {
		out = append(out, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Flush writes the current state to disk if anything changed.
func (s *Store) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}

	devices := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	snapshots := []struct {
		file string
		data interface{}
	}{
		{devicesFile, devices},
		{connectionsFile, s.connections},
		{queriesFile, s.queries},
		{countersFile, s.counters},
	}

	encoded := make(map[string][]byte, len(snapshots))
	for _, snap := range snapshots {
		data, err := json.MarshalIndent(snap.data, "", "  ")
		if err != nil {
			s.mu.Unlock()
			return errors.NewStorageError(fmt.Sprintf("failed to encode %s", snap.file), err)
		}
		encoded[snap.file] = data
	}
	s.dirty = false
	s.mu.Unlock()

	for file, data := range encoded {
		if err := utils.WriteFileAtomic(filepath.Join(s.dataDir, file), data, 0o644); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write %s", file), err)
		}
	}
	return nil
}

func (s *Store) upsertDeviceLocked(ip string, now time.Time) {
	if ip == "" {
		return
	}
	if d, ok := s.devices[ip]; ok {
		d.LastSeen = now
		return
	}
	s.devices[ip] = &Device{
		ID:        utils.NewULID(),
		IP:        ip,
		FirstSeen: now,
		LastSeen:  now,
	}
	log.Debugf("New device observed: %s", ip)
}

// load merges persisted state with whatever is already in memory.
// Records may arrive before Open when upstream services come up first,
// so loaded state must never clobber them.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadJSON(filepath.Join(s.dataDir, devicesFile), func(devices []*Device) {
		for _, d := range devices {
			if existing, ok := s.devices[d.IP]; ok {
				existing.ID = d.ID
				existing.Name = d.Name
				existing.FirstSeen = d.FirstSeen
				continue
			}
			s.devices[d.IP] = d
		}
	}); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dataDir, connectionsFile), func(conns []*ConnectionRecord) {
		s.connections = append(conns, s.connections...)
	}); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dataDir, queriesFile), func(queries []*DNSQueryRecord) {
		s.queries = append(queries, s.queries...)
	}); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dataDir, countersFile), func(c counters) {
		s.counters.Connections += c.Connections
		s.counters.DNSQueries += c.DNSQueries
		s.counters.DNSCacheHits += c.DNSCacheHits
		s.counters.BytesSent += c.BytesSent
		s.counters.BytesReceived += c.BytesReceived
		for domain, count := range c.DomainCounts {
			s.counters.DomainCounts[domain] += count
		}
	}); err != nil {
		return err
	}
	return nil
}

func loadJSON[T any](path string, apply func(T)) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to parse %s", path), err)
	}
	apply(v)
	return nil
}

func (s *Store) flushLoop() {
	defer s.flushWg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Warnf("Failed to flush storage: %v", err)
			}
		}
	}
}
