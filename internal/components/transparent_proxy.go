package components

import (
	"net"
	"time"

	"github.com/hearthgate/hearthgate/internal/proxy"
)

// UnitTransparentProxy is the transparent TCP proxy.
const UnitTransparentProxy = "TransparentProxy"

const proxyProbeTimeout = 500 * time.Millisecond

// TransparentProxy wraps the transparent proxy as a managed component.
type TransparentProxy struct {
	proxy *proxy.TransparentProxy
}

func NewTransparentProxy(p *proxy.TransparentProxy) *TransparentProxy {
	return &TransparentProxy{proxy: p}
}

func (t *TransparentProxy) Name() string {
	return UnitTransparentProxy
}

func (t *TransparentProxy) Start() error {
	return t.proxy.Start()
}

func (t *TransparentProxy) Stop() error {
	return t.proxy.Stop()
}

// WaitReady confirms the listener accepts connections. The probe
// connection carries no NAT state and is dropped by the proxy, which is
// exactly what should happen.
func (t *TransparentProxy) WaitReady() error {
	return waitReady(UnitTransparentProxy, func() error {
		conn, err := net.DialTimeout("tcp", loopbackAddr(t.proxy.Addr()), proxyProbeTimeout)
		if err != nil {
			return err
		}
		return conn.Close()
	})
}
