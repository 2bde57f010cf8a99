//go:build !linux

package hardware

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

func hasCarrier(attrs *netlink.LinkAttrs) bool {
	return attrs.OperState == netlink.OperUp
}

// NewNetlinkProber is only available on Linux.
func NewNetlinkProber() (*NetlinkProber, func(), error) {
	return nil, nil, fmt.Errorf("hardware probing is only supported on linux")
}
