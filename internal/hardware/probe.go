package hardware

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/vishvananda/netlink"

	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/sysconfig"
)

// LinkLister lists kernel links.
type LinkLister interface {
	LinkList() ([]netlink.Link, error)
}

// DriverInfo contains driver metadata from ethtool.
type DriverInfo struct {
	Driver   string
	Version  string
	Firmware string
	BusInfo  string
}

// DriverQuerier answers ethtool queries for an interface.
type DriverQuerier interface {
	DriverInfo(iface string) (*DriverInfo, error)
	PermAddr(iface string) (string, error)
}

// NetlinkProber discovers NICs from netlink, ethtool and sysfs.
type NetlinkProber struct {
	Links     LinkLister
	Drivers   DriverQuerier
	SysfsRoot string

	log *logging.Logger
}

// NewProber builds a prober from explicit sources. drivers may be nil.
func NewProber(links LinkLister, drivers DriverQuerier, sysfsRoot string) *NetlinkProber {
	if sysfsRoot == "" {
		sysfsRoot = "/sys"
	}
	return &NetlinkProber{
		Links:     links,
		Drivers:   drivers,
		SysfsRoot: sysfsRoot,
		log:       logging.WithComponent("hardware"),
	}
}

// Probe lists every non-loopback link.
func (p *NetlinkProber) Probe(ctx context.Context) ([]NIC, error) {
	links, err := p.Links.LinkList()
	if err != nil {
		return nil, err
	}
	var nics []NIC
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attrs := link.Attrs()
		if attrs == nil || attrs.Name == "lo" || attrs.EncapType == "loopback" {
			continue
		}
		nics = append(nics, p.describe(link))
	}
	sortNICs(nics)
	return nics, nil
}

func (p *NetlinkProber) classPath(name string, elem ...string) string {
	return filepath.Join(append([]string{p.SysfsRoot, "class", "net", name}, elem...)...)
}

func (p *NetlinkProber) readAttr(name string, elem ...string) string {
	data, err := os.ReadFile(p.classPath(name, elem...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *NetlinkProber) exists(name string, elem ...string) bool {
	_, err := os.Stat(p.classPath(name, elem...))
	return err == nil
}

func (p *NetlinkProber) describe(link netlink.Link) NIC {
	attrs := link.Attrs()
	nic := NIC{
		Name:     attrs.Name,
		MAC:      strings.ToLower(attrs.HardwareAddr.String()),
		Link:     hasCarrier(attrs),
		DevPort:  p.readAttr(attrs.Name, "dev_port"),
		Modalias: p.readAttr(attrs.Name, "device", "modalias"),
		Virtual:  !p.exists(attrs.Name, "device"),
	}

	if p.Drivers != nil && !nic.Virtual {
		if info, err := p.Drivers.DriverInfo(attrs.Name); err == nil {
			nic.Driver = info.Driver
			nic.Firmware = info.Firmware
			nic.BusID = info.BusInfo
		} else {
			p.log.Debug("ethtool driver info unavailable", "iface", attrs.Name, "error", err)
		}
		if perm, err := p.Drivers.PermAddr(attrs.Name); err == nil && perm != "00:00:00:00:00:00" {
			nic.PermanentMAC = strings.ToLower(perm)
		}
	}
	if nic.Driver == "" {
		if target, err := os.Readlink(p.classPath(attrs.Name, "device", "driver")); err == nil {
			nic.Driver = filepath.Base(target)
		}
	}
	if nic.BusID == "" && !nic.Virtual {
		if target, err := os.Readlink(p.classPath(attrs.Name, "device")); err == nil {
			nic.BusID = filepath.Base(target)
		}
	}

	nic.Type = p.classify(link, &nic)
	if nic.Type.IsS390() {
		nic.S390 = p.s390Channel(attrs.Name)
		if nic.S390 != nil && nic.BusID == "" {
			nic.BusID = nic.S390.BusID()
		}
	}
	return nic
}

func (p *NetlinkProber) classify(link netlink.Link, nic *NIC) sysconfig.DeviceType {
	switch l := link.(type) {
	case *netlink.Bond:
		return sysconfig.TypeBond
	case *netlink.Bridge:
		return sysconfig.TypeBridge
	case *netlink.Vlan:
		return sysconfig.TypeVLAN
	case *netlink.Dummy:
		return sysconfig.TypeDummy
	case *netlink.Tuntap:
		if l.Mode == netlink.TUNTAP_MODE_TAP {
			return sysconfig.TypeTap
		}
		return sysconfig.TypeTun
	}

	switch nic.Driver {
	case "qeth", "qeth_l2", "qeth_l3":
		return sysconfig.TypeQETH
	case "lcs":
		return sysconfig.TypeLCS
	case "ctcm":
		return sysconfig.TypeCTC
	case "netiucv":
		return sysconfig.TypeIUCV
	}
	switch {
	case link.Attrs().EncapType == "infiniband":
		return sysconfig.TypeInfiniband
	case p.exists(nic.Name, "wireless") || p.exists(nic.Name, "phy80211"):
		return sysconfig.TypeWireless
	case strings.HasPrefix(nic.Modalias, "usb:"):
		return sysconfig.TypeUSB
	}
	return sysconfig.TypeFromName(nic.Name)
}

// s390Channel reads the ccwgroup attributes of an s390 device.
func (p *NetlinkProber) s390Channel(name string) *S390Channel {
	link := func(elem string) string {
		target, err := os.Readlink(p.classPath(name, "device", elem))
		if err != nil {
			return ""
		}
		return filepath.Base(target)
	}
	ch := &S390Channel{
		Read:     link("cdev0"),
		Write:    link("cdev1"),
		Data:     link("cdev2"),
		Layer2:   p.readAttr(name, "device", "layer2") == "1",
		PortName: p.readAttr(name, "device", "portname"),
	}
	if ch.Read == "" {
		return nil
	}
	return ch
}
