//go:build linux

package hardware

import (
	"fmt"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

func hasCarrier(attrs *netlink.LinkAttrs) bool {
	return attrs.RawFlags&unix.IFF_LOWER_UP != 0 || attrs.OperState == netlink.OperUp
}

type kernelLinks struct{}

func (kernelLinks) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

type ethtoolQuerier struct {
	handle *ethtool.Ethtool
}

func (q *ethtoolQuerier) DriverInfo(iface string) (*DriverInfo, error) {
	info, err := q.handle.DriverInfo(iface)
	if err != nil {
		return nil, fmt.Errorf("ethtool DriverInfo failed for %s: %w", iface, err)
	}
	return &DriverInfo{
		Driver:   info.Driver,
		Version:  info.Version,
		Firmware: info.FwVersion,
		BusInfo:  info.BusInfo,
	}, nil
}

func (q *ethtoolQuerier) PermAddr(iface string) (string, error) {
	return q.handle.PermAddr(iface)
}

// NewNetlinkProber returns a prober backed by the running kernel and a
// function releasing its ethtool handle.
func NewNetlinkProber() (*NetlinkProber, func(), error) {
	h, err := ethtool.NewEthtool()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ethtool handle: %w", err)
	}
	return NewProber(kernelLinks{}, &ethtoolQuerier{handle: h}, "/sys"), h.Close, nil
}
