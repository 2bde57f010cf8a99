//go:build !linux

package dhcp

import (
	"context"
	"time"

	lcerrors "grimm.is/lancfg/internal/errors"
)

// ClientProber is unavailable off Linux.
type ClientProber struct {
	Timeout time.Duration
}

// Probe always fails.
func (p ClientProber) Probe(ctx context.Context, iface string) (*Offer, error) {
	return nil, lcerrors.New(lcerrors.ErrCodeCommand, "DHCP probing is only supported on Linux")
}
