package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
	"github.com/hearthgate/hearthgate/internal/utils"
)

// ConnectionRecorder receives every completed proxied connection.
// Implementations must be safe for concurrent use.
type ConnectionRecorder interface {
	RecordConnection(deviceIP, dstAddr string, dstPort uint16, sent, received int64, duration time.Duration)
}

// TransparentProxy accepts TCP connections redirected to it by the
// interception rules, recovers the client's original destination and
// relays the stream both ways while counting bytes.
type TransparentProxy struct {
	port        uint16
	dialTimeout time.Duration
	recorder    ConnectionRecorder

	// Injection points for tests.
	dial        func(ctx context.Context, addr string) (net.Conn, error)
	originalDst func(conn *net.TCPConn) (net.IP, uint16, error)

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active int64
}

// NewTransparentProxy creates a transparent proxy from the gateway
// configuration. recorder may be nil.
func NewTransparentProxy(cfg *config.Config, recorder ConnectionRecorder) *TransparentProxy {
	ctx, cancel := context.WithCancel(context.Background())

	p := &TransparentProxy{
		port:        cfg.Proxy.Port,
		dialTimeout: time.Duration(cfg.Proxy.DialTimeoutSeconds) * time.Second,
		recorder:    recorder,
		originalDst: originalDst,
		ctx:         ctx,
		cancel:      cancel,
	}
	dialer := &net.Dialer{Timeout: p.dialTimeout}
	p.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	return p
}

// Start binds the listener and launches the accept loop.
func (p *TransparentProxy) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", p.port))
	if err != nil {
		return errors.NewProcessError(fmt.Sprintf("failed to listen on port %d", p.port), err)
	}
	p.ln = ln

	log.Infof("Transparent proxy listening on %s", ln.Addr())

	p.wg.Add(1)
	go p.acceptLoop()

	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (p *TransparentProxy) Stop() error {
	log.Infof("Stopping transparent proxy...")
	p.cancel()
	if p.ln != nil {
		_ = p.ln.Close()
	}
	p.wg.Wait()
	log.Infof("Transparent proxy stopped")
	return nil
}

// Addr returns the listener address, or empty before Start.
func (p *TransparentProxy) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// ActiveConnections returns the number of connections currently relayed.
func (p *TransparentProxy) ActiveConnections() int64 {
	return atomic.LoadInt64(&p.active)
}

func (p *TransparentProxy) acceptLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Debugf("Accept error: %v", err)
			continue
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.handleConn(conn)
		}()
	}
}

func (p *TransparentProxy) handleConn(clientConn net.Conn) {
	defer utils.CloseOrWarn(clientConn)

	tcpConn, ok := clientConn.(*net.TCPConn)
	if !ok {
		log.Debugf("Dropping non-TCP connection from %s", clientConn.RemoteAddr())
		return
	}

	dstIP, dstPort, err := p.originalDst(tcpConn)
	if err != nil {
		log.Debugf("Failed to get original destination for %s: %v", clientConn.RemoteAddr(), err)
		return
	}

	// A connection whose original destination is the proxy itself was not
	// redirected; relaying it would loop forever.
	if dstPort == p.port && isLocalAddr(dstIP) {
		log.Debugf("Dropping direct connection to proxy port from %s", clientConn.RemoteAddr())
		return
	}

	clientIP := remoteIP(clientConn.RemoteAddr())
	dstAddr := net.JoinHostPort(dstIP.String(), fmt.Sprintf("%d", dstPort))
	log.Debugf("Relaying %s -> %s", clientConn.RemoteAddr(), dstAddr)

	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.dialTimeout)
	serverConn, err := p.dial(ctx, dstAddr)
	cancel()
	if err != nil {
		log.Debugf("Failed to dial %s: %v", dstAddr, err)
		return
	}
	defer utils.CloseOrWarn(serverConn)

	atomic.AddInt64(&p.active, 1)
	sent, received := relay(tcpConn, serverConn)
	atomic.AddInt64(&p.active, -1)

	duration := time.Since(start)
	log.Debugf("Connection %s -> %s closed: %d bytes sent, %d received in %v",
		clientIP, dstAddr, sent, received, duration)

	if p.recorder != nil {
		p.recorder.RecordConnection(clientIP, dstIP.String(), dstPort, sent, received, duration)
	}
}

// relay copies both directions until each side closes, returning the
// client-to-server and server-to-client byte counts.
func relay(client, server net.Conn) (sent, received int64) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		sent, _ = io.Copy(server, client)
		closeWrite(server)
	}()
	go func() {
		defer wg.Done()
		received, _ = io.Copy(client, server)
		closeWrite(client)
	}()

	wg.Wait()
	return sent, received
}

// closeWrite half-closes the write side so the peer sees EOF while the
// opposite direction keeps draining.
func closeWrite(conn net.Conn) {
	type closeWriter interface{ CloseWrite() error }
	if cw, ok := conn.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
}

func isLocalAddr(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
			return true
		}
	}
	return false
}

func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
