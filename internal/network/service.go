package network

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
)

// Backend is the service that brings interfaces up from the ifcfg files.
type Backend string

const (
	BackendWicked         Backend = "wicked"
	BackendNetworkManager Backend = "NetworkManager"
	BackendIfup           Backend = "ifup"
	BackendNone           Backend = "none"
)

// ParseBackend accepts a backend name; "" and "auto" mean detect.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return "", nil
	case "wicked":
		return BackendWicked, nil
	case "networkmanager", "nm":
		return BackendNetworkManager, nil
	case "ifup":
		return BackendIfup, nil
	case "none":
		return BackendNone, nil
	}
	return "", lcerrors.Invalid("unknown network backend %q", s)
}

// Service applies configuration to the running system.
type Service struct {
	nl      Netlinker
	sys     SystemController
	cmd     CommandExecutor
	backend Backend
	log     *logging.Logger
}

// NewServiceWithDeps creates a service with injected dependencies.
func NewServiceWithDeps(nl Netlinker, sys SystemController, cmd CommandExecutor) *Service {
	return &Service{
		nl:  nl,
		sys: sys,
		cmd: cmd,
		log: logging.WithComponent("network"),
	}
}

// SetBackend fixes the backend instead of detecting it. "" re-enables
// detection.
func (s *Service) SetBackend(b Backend) {
	s.backend = b
}

// Backend returns the configured backend, detecting the active service on
// first use.
func (s *Service) Backend(ctx context.Context) Backend {
	if s.backend != "" {
		return s.backend
	}
	s.backend = BackendNone
	for _, b := range []Backend{BackendWicked, BackendNetworkManager} {
		// is-active exits non-zero for inactive units; only the output matters
		out, _ := s.cmd.RunCommand(ctx, "systemctl", "is-active", string(b))
		if strings.TrimSpace(out) == "active" {
			s.backend = b
			break
		}
	}
	s.log.Debug("detected network backend", "backend", s.backend)
	return s.backend
}

func (s *Service) run(ctx context.Context, name string, arg ...string) (string, error) {
	out, err := s.cmd.RunCommand(ctx, name, arg...)
	if err != nil {
		s.log.Warn("command failed", "command", name, "args", arg, "error", err)
		return out, lcerrors.Command(name+" failed", err)
	}
	s.log.Debug("ran command", "command", name, "args", arg)
	return out, nil
}

// Reload makes the backend re-read the configuration of devs, or of all
// devices when devs is empty.
func (s *Service) Reload(ctx context.Context, devs ...string) error {
	switch s.Backend(ctx) {
	case BackendWicked:
		args := []string{"ifreload"}
		if len(devs) == 0 {
			args = append(args, "all")
		}
		_, err := s.run(ctx, "wicked", append(args, devs...)...)
		return err
	case BackendNetworkManager:
		if _, err := s.run(ctx, "nmcli", "connection", "reload"); err != nil {
			return err
		}
		for _, dev := range devs {
			if _, err := s.run(ctx, "nmcli", "device", "reapply", dev); err != nil {
				return err
			}
		}
		return nil
	case BackendIfup:
		if len(devs) == 0 {
			_, err := s.run(ctx, "systemctl", "restart", "network")
			return err
		}
		for _, dev := range devs {
			// ifdown fails for devices that are not up yet
			_ = s.Down(ctx, dev)
			if err := s.Up(ctx, dev); err != nil {
				return err
			}
		}
		return nil
	case BackendNone:
		// without a service only the links of named devices can be raised
		for _, dev := range devs {
			if err := s.Up(ctx, dev); err != nil {
				return err
			}
		}
		if len(devs) > 0 {
			return nil
		}
	}
	return lcerrors.New(lcerrors.ErrCodeCommand, "no network service is active")
}

// Up starts dev with ifup, or sets its link up when no backend is active.
func (s *Service) Up(ctx context.Context, dev string) error {
	if s.Backend(ctx) == BackendNone {
		return s.setLink(dev, true)
	}
	_, err := s.run(ctx, "ifup", dev)
	return err
}

// Down stops dev with ifdown, or sets its link down when no backend is
// active.
func (s *Service) Down(ctx context.Context, dev string) error {
	if s.Backend(ctx) == BackendNone {
		return s.setLink(dev, false)
	}
	_, err := s.run(ctx, "ifdown", dev)
	return err
}

func (s *Service) setLink(dev string, up bool) error {
	link, err := s.nl.LinkByName(dev)
	if err != nil {
		return lcerrors.NotFound("link", dev)
	}
	if up {
		err = s.nl.LinkSetUp(link)
	} else {
		err = s.nl.LinkSetDown(link)
	}
	if err != nil {
		return lcerrors.Command("failed to set link state of "+dev, err)
	}
	s.log.Debug("set link state", "device", dev, "up", up)
	return nil
}

// Netlinker returns the netlink interface the service uses.
func (s *Service) Netlinker() Netlinker {
	return s.nl
}

// DeviceStatus is the state one device is in.
type DeviceStatus struct {
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}

// Status reports the state of devs, or of every device when devs is empty.
// wicked is asked directly; other backends are answered from netlink.
func (s *Service) Status(ctx context.Context, devs ...string) ([]DeviceStatus, error) {
	if s.Backend(ctx) == BackendWicked {
		args := []string{"ifstatus", "--brief"}
		if len(devs) == 0 {
			args = append(args, "all")
		}
		out, err := s.run(ctx, "wicked", append(args, devs...)...)
		if err != nil {
			return nil, err
		}
		return parseBriefStatus(out), nil
	}

	if len(devs) == 0 {
		links, err := s.nl.LinkList()
		if err != nil {
			return nil, fmt.Errorf("failed to list links: %w", err)
		}
		for _, l := range links {
			devs = append(devs, l.Attrs().Name)
		}
		sort.Strings(devs)
	}
	out := make([]DeviceStatus, 0, len(devs))
	for _, dev := range devs {
		st, err := s.LinkState(dev)
		if err != nil {
			out = append(out, DeviceStatus{Name: dev, State: "device-not-present"})
			continue
		}
		state := "down"
		if st.Up {
			state = "up"
			if !st.Carrier {
				state = "no-carrier"
			}
		}
		out = append(out, DeviceStatus{Name: dev, State: state})
	}
	return out, nil
}

// parseBriefStatus reads "wicked ifstatus --brief" output: a name and a
// state per line.
func parseBriefStatus(out string) []DeviceStatus {
	var list []DeviceStatus
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		list = append(list, DeviceStatus{Name: fields[0], State: strings.Join(fields[1:], " ")})
	}
	return list
}

// LinkState is what the kernel reports about a link.
type LinkState struct {
	Name      string   `json:"name" yaml:"name"`
	Up        bool     `json:"up" yaml:"up"`
	Carrier   bool     `json:"carrier" yaml:"carrier"`
	OperState string   `json:"operstate" yaml:"operstate"`
	MTU       int      `json:"mtu" yaml:"mtu"`
	MAC       string   `json:"mac,omitempty" yaml:"mac,omitempty"`
	Addresses []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
}

// LinkState reads the kernel state of name.
func (s *Service) LinkState(name string) (*LinkState, error) {
	link, err := s.nl.LinkByName(name)
	if err != nil {
		return nil, lcerrors.NotFound("link", name)
	}
	attrs := link.Attrs()
	st := &LinkState{
		Name:      attrs.Name,
		Up:        attrs.Flags&net.FlagUp != 0,
		Carrier:   attrs.OperState == netlink.OperUp,
		OperState: attrs.OperState.String(),
		MTU:       attrs.MTU,
	}
	if attrs.HardwareAddr != nil {
		st.MAC = attrs.HardwareAddr.String()
	}
	addrs, err := s.nl.AddrList(link, unix.AF_UNSPEC)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil {
			st.Addresses = append(st.Addresses, a.IPNet.String())
		}
	}
	return st, nil
}

// BiosName asks biosdevname for the firmware name of iface.
func (s *Service) BiosName(ctx context.Context, iface string) (string, error) {
	out, err := s.run(ctx, "biosdevname", "-i", iface)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(out)
	if name == "" {
		return "", lcerrors.NotFound("BIOS name", iface)
	}
	return name, nil
}
