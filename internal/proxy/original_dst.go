package proxy

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// originalDst recovers the pre-REDIRECT destination of an intercepted
// TCP connection from the kernel's NAT state. The REDIRECT target
// rewrites the packet's destination to the proxy, but conntrack keeps
// the original tuple and exposes it via SO_ORIGINAL_DST.
func originalDst(conn *net.TCPConn) (net.IP, uint16, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get raw conn: %w", err)
	}

	var (
		mreq    *unix.IPv6Mreq
		sockErr error
	)
	if err := raw.Control(func(fd uintptr) {
		mreq, sockErr = unix.GetsockoptIPv6Mreq(int(fd), unix.SOL_IP, unix.SO_ORIGINAL_DST)
	}); err != nil {
		return nil, 0, fmt.Errorf("failed to control raw conn: %w", err)
	}
	if sockErr != nil {
		return nil, 0, fmt.Errorf("SO_ORIGINAL_DST failed: %w", sockErr)
	}

	// The result is a sockaddr_in: port in bytes 2-3, IPv4 address in 4-7.
	addr := mreq.Multiaddr
	port := uint16(addr[2])<<8 | uint16(addr[3])
	ip := net.IPv4(addr[4], addr[5], addr[6], addr[7])

	return ip, port, nil
}
