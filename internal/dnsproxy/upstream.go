package dnsproxy

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/hearthgate/hearthgate/internal/log"
)

const upstreamQueryTimeout = 5 * time.Second

// Upstream resolves DNS queries against a configured resolver.
type Upstream interface {
	Query(ctx context.Context, req *dns.Msg) (*dns.Msg, error)
	String() string
}

// udpUpstream forwards queries over UDP and retries over TCP when the
// response comes back truncated.
type udpUpstream struct {
	addr      string
	udpClient *dns.Client
	tcpClient *dns.Client
}

// NewUDPUpstream creates an upstream for the given resolver address. A
// bare IP gets the default DNS port appended.
func NewUDPUpstream(addr string) Upstream {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}

	return &udpUpstream{
		addr:      addr,
		udpClient: &dns.Client{Net: "udp", Timeout: upstreamQueryTimeout},
		tcpClient: &dns.Client{Net: "tcp", Timeout: upstreamQueryTimeout},
	}
}

func (u *udpUpstream) String() string {
	return "udp://" + u.addr
}

func (u *udpUpstream) Query(ctx context.Context, req *dns.Msg) (*dns.Msg, error) {
	resp, _, err := u.udpClient.ExchangeContext(ctx, req, u.addr)
	if err != nil {
		return nil, err
	}

	if resp.Truncated {
		log.Debugf("[%04x] Response truncated, retrying over TCP", req.Id)
		tcpResp, _, tcpErr := u.tcpClient.ExchangeContext(ctx, req, u.addr)
		if tcpErr == nil && tcpResp != nil {
			return tcpResp, nil
		}
		// The truncated UDP answer is still better than nothing.
		return resp, nil
	}

	return resp, nil
}
