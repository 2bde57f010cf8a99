package dhcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// DefaultProbeTimeout bounds one DISCOVER/OFFER exchange.
const DefaultProbeTimeout = 5 * time.Second

// Offer summarizes the first DHCPOFFER received on an interface.
type Offer struct {
	Interface string        `json:"interface" yaml:"interface"`
	Server    string        `json:"server" yaml:"server"`
	Address   string        `json:"address" yaml:"address"`
	Routers   []string      `json:"routers,omitempty" yaml:"routers,omitempty"`
	DNS       []string      `json:"dns,omitempty" yaml:"dns,omitempty"`
	Domain    string        `json:"domain,omitempty" yaml:"domain,omitempty"`
	Lease     time.Duration `json:"lease" yaml:"lease"`
}

// Prober looks for a DHCP server on an interface.
type Prober interface {
	Probe(ctx context.Context, iface string) (*Offer, error)
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

// offerFrom extracts the interesting fields of an OFFER message.
func offerFrom(iface string, m *dhcpv4.DHCPv4) *Offer {
	o := &Offer{
		Interface: iface,
		Routers:   ipStrings(m.Router()),
		DNS:       ipStrings(m.DNS()),
		Domain:    m.DomainName(),
		Lease:     m.IPAddressLeaseTime(0),
	}
	if sid := m.ServerIdentifier(); sid != nil {
		o.Server = sid.String()
	} else if m.ServerIPAddr != nil && !m.ServerIPAddr.IsUnspecified() {
		o.Server = m.ServerIPAddr.String()
	}
	if m.YourIPAddr != nil && !m.YourIPAddr.IsUnspecified() {
		o.Address = m.YourIPAddr.String()
		if mask := m.SubnetMask(); mask != nil {
			ones, _ := mask.Size()
			o.Address = fmt.Sprintf("%s/%d", m.YourIPAddr, ones)
		}
	}
	return o
}
