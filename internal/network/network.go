// Package network activates the written configuration on the running
// system. It drives the configured backend (wicked, NetworkManager or the
// classic ifup scripts), ethtool, biosdevname and chzdev, and reads link
// state over netlink.
//
// Every system call goes through one of three small interfaces so the
// service can be tested with mocks and run in dry-run mode.
package network

import (
	"context"

	"github.com/vishvananda/netlink"
)

// Netlinker abstracts the netlink calls the service makes.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

// SystemController abstracts sysctl access.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
	IsNotExist(err error) bool
}

// CommandExecutor runs an external command and returns its combined output.
type CommandExecutor interface {
	RunCommand(ctx context.Context, name string, arg ...string) (string, error)
}
