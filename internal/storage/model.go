package storage

import "time"

// Device is a LAN client observed by the gateway, keyed by IP address.
type Device struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ConnectionRecord is one completed proxied connection.
type ConnectionRecord struct {
	ID            string    `json:"id"`
	DeviceIP      string    `json:"device_ip"`
	DstAddr       string    `json:"dst_addr"`
	DstPort       uint16    `json:"dst_port"`
	BytesSent     int64     `json:"bytes_sent"`
	BytesReceived int64     `json:"bytes_received"`
	DurationMs    int64     `json:"duration_ms"`
	StartedAt     time.Time `json:"started_at"`
}

// DNSQueryRecord is one answered DNS query.
type DNSQueryRecord struct {
	ID        string    `json:"id"`
	ClientIP  string    `json:"client_ip"`
	Domain    string    `json:"domain"`
	QueryType string    `json:"query_type"`
	Rcode     string    `json:"rcode"`
	Cached    bool      `json:"cached"`
	Ts        time.Time `json:"ts"`
}

// OverviewStats summarizes everything the gateway has observed. The
// lifetime totals come from the persistent counters; the windowed
// figures are computed over the bounded recent-record windows.
type OverviewStats struct {
	Devices       int   `json:"devices"`
	Connections   int64 `json:"connections"`
	DNSQueries    int64 `json:"dns_queries"`
	DNSCacheHits  int64 `json:"dns_cache_hits"`
	BytesSent     int64 `json:"bytes_sent"`
	BytesReceived int64 `json:"bytes_received"`

	ConnectionsLastHour int64 `json:"connections_last_hour"`
	TrafficBytesToday   int64 `json:"traffic_bytes_today"`
	DNSQueriesToday     int64 `json:"dns_queries_today"`
}

// DomainCount is one entry of the top-domains ranking.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// HourlyTraffic is one hour's aggregated connection traffic.
type HourlyTraffic struct {
	Hour          time.Time `json:"timestamp"`
	BytesSent     int64     `json:"bytes_sent"`
	BytesReceived int64     `json:"bytes_received"`
	TotalBytes    int64     `json:"total_bytes"`
	Connections   int64     `json:"connection_count"`
}
