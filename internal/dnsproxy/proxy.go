package dnsproxy

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

const queryLogFlushInterval = 1 * time.Second

// QueryRecorder receives every answered DNS query for per-device
// activity tracking. Implementations must be safe for concurrent use.
type QueryRecorder interface {
	RecordDNSQuery(clientIP, domain, queryType, rcode string, cached bool)
}

// Monitor is the gateway's DNS service: it answers LAN clients from a
// bounded response cache, forwards misses to the upstream resolver, and
// records every query for visibility.
type Monitor struct {
	listenAddr string
	upstream   Upstream
	cache      *ResponseCache
	queryLog   *QueryLog
	recorder   QueryRecorder

	udpServer *dns.Server
	tcpServer *dns.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	serveErrs []error
}

// NewMonitor creates a DNS monitor from the gateway configuration.
// recorder may be nil when query recording is not wanted.
func NewMonitor(cfg *config.Config, recorder QueryRecorder) (*Monitor, error) {
	queryLog, err := NewQueryLog(cfg.QueryLogPath())
	if err != nil {
		return nil, errors.NewDNSError("failed to open query log", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Monitor{
		listenAddr: fmt.Sprintf("0.0.0.0:%d", cfg.DNS.Port),
		upstream:   NewUDPUpstream(cfg.DNS.Upstream),
		cache:      NewResponseCache(cfg.DNS.CacheMaxEntries),
		queryLog:   queryLog,
		recorder:   recorder,
		ctx:        ctx,
		cancel:     cancel,
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", m.handle)

	m.udpServer = &dns.Server{Addr: m.listenAddr, Net: "udp", Handler: mux}
	m.tcpServer = &dns.Server{Addr: m.listenAddr, Net: "tcp", Handler: mux}

	return m, nil
}

// ListenAddr returns the address the monitor binds to.
func (m *Monitor) ListenAddr() string {
	return m.listenAddr
}

// Start launches the UDP and TCP listeners. It returns once both
// servers have been handed off to their serve goroutines; bind errors
// surface through Err.
func (m *Monitor) Start() error {
	log.Infof("Starting DNS monitor on %s (upstream %s)...", m.listenAddr, m.upstream)

	m.wg.Add(2)
	go m.serve(m.udpServer)
	go m.serve(m.tcpServer)

	m.wg.Add(1)
	go m.flushLoop()

	return nil
}

// Stop shuts down the listeners and flushes the query log.
func (m *Monitor) Stop() error {
	log.Infof("Stopping DNS monitor...")
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.udpServer.ShutdownContext(ctx); err != nil {
		log.Debugf("UDP server shutdown: %v", err)
	}
	if err := m.tcpServer.ShutdownContext(ctx); err != nil {
		log.Debugf("TCP server shutdown: %v", err)
	}

	m.wg.Wait()

	if err := m.queryLog.Close(); err != nil {
		log.Warnf("Failed to close query log: %v", err)
	}

	log.Infof("DNS monitor stopped")
	return nil
}

// Err returns the first listener error, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.serveErrs) > 0 {
		return m.serveErrs[0]
	}
	return nil
}

// CacheLen returns the number of cached responses.
func (m *Monitor) CacheLen() int {
	return m.cache.Len()
}

func (m *Monitor) serve(srv *dns.Server) {
	defer m.wg.Done()

	if err := srv.ListenAndServe(); err != nil && m.ctx.Err() == nil {
		log.Errorf("DNS %s listener failed: %v", srv.Net, err)
		m.mu.Lock()
		m.serveErrs = append(m.serveErrs, errors.NewDNSError(fmt.Sprintf("%s listener failed", srv.Net), err))
		m.mu.Unlock()
	}
}

func (m *Monitor) flushLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(queryLogFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.queryLog.Flush(); err != nil {
				log.Warnf("Failed to flush query log: %v", err)
			}
		}
	}
}

// handle serves one DNS request: cache lookup, upstream forward on
// miss, SERVFAIL when the upstream is unreachable.
func (m *Monitor) handle(w dns.ResponseWriter, r *dns.Msg) {
	now := time.Now()
	transport := w.RemoteAddr().Network()
	clientIP := remoteIP(w.RemoteAddr())

	if r == nil || len(r.Question) == 0 {
		m.refuse(w, r, dns.RcodeFormatError)
		return
	}

	q := r.Question[0]
	domain := strings.TrimSuffix(strings.ToLower(dns.Fqdn(q.Name)), ".")
	queryType := dns.TypeToString[q.Qtype]

	var key string
	if isCacheableQuery(r) {
		key = cacheKey(q, doBit(r))
		if msg, ok := m.cache.Get(key, now); ok {
			msg.Id = r.Id
			msg.RecursionAvailable = true
			if err := w.WriteMsg(msg); err != nil {
				log.Debugf("[%04x] Failed to write cached response: %v", r.Id, err)
				return
			}
			m.logQuery(now, transport, clientIP, domain, queryType, msg, "", 0, true, "ok")
			return
		}
	}

	ctx, cancel := context.WithTimeout(m.ctx, upstreamQueryTimeout)
	defer cancel()

	resp, err := m.upstream.Query(ctx, r)
	latency := time.Since(now)
	if err != nil || resp == nil {
		log.Debugf("[%04x] Upstream query for %s failed: %v", r.Id, domain, err)
		m.refuse(w, r, dns.RcodeServerFailure)
		m.logQuery(now, transport, clientIP, domain, queryType, nil, m.upstream.String(), latency, false, "fail")
		return
	}

	resp.Id = r.Id
	resp.RecursionAvailable = true

	if err := w.WriteMsg(resp); err != nil {
		log.Debugf("[%04x] Failed to write response: %v", r.Id, err)
		return
	}

	if key != "" {
		if ttl, ok := minTTL(resp); ok {
			m.cache.Put(key, resp, ttl, now)
		}
	}

	m.logQuery(now, transport, clientIP, domain, queryType, resp, m.upstream.String(), latency, false, "ok")
}

func (m *Monitor) refuse(w dns.ResponseWriter, r *dns.Msg, rcode int) {
	msg := new(dns.Msg)
	if r != nil {
		msg.SetReply(r)
	}
	msg.RecursionAvailable = true
	msg.Rcode = rcode
	if err := w.WriteMsg(msg); err != nil {
		log.Debugf("Failed to write refusal: %v", err)
	}
}

func (m *Monitor) logQuery(ts time.Time, transport, clientIP, domain, queryType string, resp *dns.Msg, upstream string, latency time.Duration, cacheHit bool, result string) {
	rcode := ""
	answers := 0
	if resp != nil {
		rcode = dns.RcodeToString[resp.Rcode]
		answers = len(resp.Answer)
	}

	ev := QueryEvent{
		Ts:        ts.Format(time.RFC3339Nano),
		Transport: transport,
		ClientIP:  clientIP,
		Domain:    domain,
		QueryType: queryType,
		Rcode:     rcode,
		Answers:   answers,
		CacheHit:  cacheHit,
		Upstream:  upstream,
		LatencyMs: latency.Milliseconds(),
		Result:    result,
	}
	if err := m.queryLog.Write(ev); err != nil {
		log.Warnf("Failed to write query log: %v", err)
	}

	if m.recorder != nil && result == "ok" {
		m.recorder.RecordDNSQuery(clientIP, domain, queryType, rcode, cacheHit)
	}
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
