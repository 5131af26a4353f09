package components

import (
	"time"

	"github.com/miekg/dns"

	"github.com/hearthgate/hearthgate/internal/dnsproxy"
)

// UnitDNSMonitor is the DNS service.
const UnitDNSMonitor = "DNSMonitor"

const dnsProbeTimeout = 500 * time.Millisecond

// DNSMonitor wraps the DNS monitor as a managed component. Its
// listeners bind asynchronously, so readiness is probed with an actual
// DNS exchange against the local listener.
type DNSMonitor struct {
	monitor *dnsproxy.Monitor
}

func NewDNSMonitor(monitor *dnsproxy.Monitor) *DNSMonitor {
	return &DNSMonitor{monitor: monitor}
}

func (d *DNSMonitor) Name() string {
	return UnitDNSMonitor
}

func (d *DNSMonitor) Start() error {
	return d.monitor.Start()
}

func (d *DNSMonitor) Stop() error {
	return d.monitor.Stop()
}

// WaitReady blocks until the UDP listener answers a probe query.
// Any response counts, including SERVFAIL: it proves the listener is
// up even when the upstream is not reachable yet.
func (d *DNSMonitor) WaitReady() error {
	client := &dns.Client{Net: "udp", Timeout: dnsProbeTimeout}

	probeAddr := loopbackAddr(d.monitor.ListenAddr())

	return waitReady(UnitDNSMonitor, func() error {
		if err := d.monitor.Err(); err != nil {
			return err
		}

		probe := new(dns.Msg)
		probe.SetQuestion("ready.probe.invalid.", dns.TypeA)

		_, _, err := client.Exchange(probe, probeAddr)
		return err
	})
}
