package network

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vishvananda/netlink"
)

// DryRunExecutor records command lines instead of running them.
type DryRunExecutor struct {
	mu       sync.Mutex
	Commands []string
}

// NewDryRunExecutor creates a new dry run executor.
func NewDryRunExecutor() *DryRunExecutor {
	return &DryRunExecutor{Commands: make([]string, 0)}
}

// RunCommand records the command.
func (e *DryRunExecutor) RunCommand(ctx context.Context, name string, arg ...string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = append(e.Commands, strings.TrimSpace(name+" "+strings.Join(arg, " ")))
	return "", nil
}

// Recorded returns a copy of the recorded command lines.
func (e *DryRunExecutor) Recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.Commands...)
}

// DryRunSystemController records sysctl writes; reads report "0".
type DryRunSystemController struct {
	mu     sync.Mutex
	Writes []string
}

func (s *DryRunSystemController) ReadSysctl(path string) (string, error) {
	return "0", nil
}

func (s *DryRunSystemController) WriteSysctl(path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, fmt.Sprintf("sysctl -w %s=%s", path, value))
	return nil
}

func (s *DryRunSystemController) IsNotExist(err error) bool {
	return false
}

// DryRunNetlinker records link changes and reports no links.
type DryRunNetlinker struct {
	mu  sync.Mutex
	Ops []string
}

func (n *DryRunNetlinker) log(op string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Ops = append(n.Ops, "ip "+op)
}

// Recorded returns a copy of the recorded link operations.
func (n *DryRunNetlinker) Recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Ops...)
}

func (n *DryRunNetlinker) LinkByName(name string) (netlink.Link, error) {
	return &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: name}}, nil
}
func (n *DryRunNetlinker) LinkList() ([]netlink.Link, error) { return nil, nil }
func (n *DryRunNetlinker) LinkSetUp(link netlink.Link) error {
	n.log(fmt.Sprintf("link set %s up", link.Attrs().Name))
	return nil
}
func (n *DryRunNetlinker) LinkSetDown(link netlink.Link) error {
	n.log(fmt.Sprintf("link set %s down", link.Attrs().Name))
	return nil
}
func (n *DryRunNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, nil
}
