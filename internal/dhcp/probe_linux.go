//go:build linux

package dhcp

import (
	"context"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
)

// ClientProber sends a real DHCPDISCOVER. The interface must be up.
type ClientProber struct {
	Timeout time.Duration
}

// Probe waits for the first offer on iface.
func (p ClientProber) Probe(ctx context.Context, iface string) (*Offer, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	client, err := nclient4.New(iface, nclient4.WithTimeout(timeout), nclient4.WithRetry(1))
	if err != nil {
		return nil, lcerrors.Wrap(lcerrors.ErrCodeCommand, "failed to create DHCP client for "+iface, err)
	}
	defer client.Close()

	offer, err := client.DiscoverOffer(ctx)
	if err != nil {
		return nil, lcerrors.Wrap(lcerrors.ErrCodeNotFound, "no DHCP offer on "+iface, err)
	}
	logging.WithComponent("dhcp").Debug("received offer", "interface", iface, "summary", offer.Summary())
	return offerFrom(iface, offer), nil
}
