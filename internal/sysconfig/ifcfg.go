package sysconfig

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Well-known ifcfg keys.
const (
	KeyBootProto      = "BOOTPROTO"
	KeyStartMode      = "STARTMODE"
	KeyIPAddr         = "IPADDR"
	KeyNetmask        = "NETMASK"
	KeyPrefixLen      = "PREFIXLEN"
	KeyLabel          = "LABEL"
	KeyBroadcast      = "BROADCAST"
	KeyRemoteIPAddr   = "REMOTE_IPADDR"
	KeyMTU            = "MTU"
	KeyName           = "NAME"
	KeyZone           = "ZONE"
	KeyLLAddr         = "LLADDR"
	KeyEthtool        = "ETHTOOL_OPTIONS"
	KeyInterfaceType  = "INTERFACETYPE"
	KeyBondingMaster  = "BONDING_MASTER"
	KeyBondingSlave   = "BONDING_SLAVE"
	KeyBondingOptions = "BONDING_MODULE_OPTS"
	KeyBridge         = "BRIDGE"
	KeyBridgePorts    = "BRIDGE_PORTS"
	KeyBridgeSTP      = "BRIDGE_STP"
	KeyBridgeFwdDelay = "BRIDGE_FORWARDDELAY"
	KeyEtherDevice    = "ETHERDEVICE"
	KeyVlanID         = "VLAN_ID"
	KeyTunnel         = "TUNNEL"
	KeyTunnelOwner    = "TUNNEL_SET_OWNER"
	KeyTunnelGroup    = "TUNNEL_SET_GROUP"
	KeyWirelessMode   = "WIRELESS_MODE"
	KeyWirelessESSID  = "WIRELESS_ESSID"
	KeyWirelessAuth   = "WIRELESS_AUTH_MODE"
	KeyWirelessPSK    = "WIRELESS_WPA_PSK"
	KeyIfplugdPrio    = "IFPLUGD_PRIORITY"
)

// BOOTPROTO values.
const (
	BootStatic = "static"
	BootDHCP   = "dhcp"
	BootDHCP4  = "dhcp4"
	BootDHCP6  = "dhcp6"
	BootDHCPIP = "dhcp+autoip"
	BootAutoIP = "autoip"
	BootNone   = "none"
	BootIBFT   = "ibft"
)

// STARTMODE values.
const (
	StartAuto    = "auto"
	StartHotplug = "hotplug"
	StartManual  = "manual"
	StartOff     = "off"
	StartNFSRoot = "nfsroot"
	StartIfplugd = "ifplugd"
)

// DeviceType is the kind of a logical network device.
type DeviceType string

const (
	TypeEthernet   DeviceType = "eth"
	TypeWireless   DeviceType = "wlan"
	TypeBond       DeviceType = "bond"
	TypeBridge     DeviceType = "br"
	TypeVLAN       DeviceType = "vlan"
	TypeTun        DeviceType = "tun"
	TypeTap        DeviceType = "tap"
	TypeInfiniband DeviceType = "ib"
	TypeQETH       DeviceType = "qeth"
	TypeHSI        DeviceType = "hsi"
	TypeCTC        DeviceType = "ctc"
	TypeLCS        DeviceType = "lcs"
	TypeIUCV       DeviceType = "iucv"
	TypeDummy      DeviceType = "dummy"
	TypeUSB        DeviceType = "usb"
	TypeLoopback   DeviceType = "lo"
)

// DeviceTypes lists every type ParseDeviceType accepts.
var DeviceTypes = []DeviceType{
	TypeEthernet, TypeWireless, TypeBond, TypeBridge, TypeVLAN, TypeTun, TypeTap,
	TypeInfiniband, TypeQETH, TypeHSI, TypeCTC, TypeLCS, TypeIUCV, TypeDummy, TypeUSB,
}

// ParseDeviceType accepts a type name and a few common aliases.
func ParseDeviceType(s string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eth", "ethernet":
		return TypeEthernet, nil
	case "wlan", "wireless", "wifi":
		return TypeWireless, nil
	case "bond", "bonding":
		return TypeBond, nil
	case "br", "bridge":
		return TypeBridge, nil
	case "vlan":
		return TypeVLAN, nil
	case "tun":
		return TypeTun, nil
	case "tap":
		return TypeTap, nil
	}
	for _, t := range DeviceTypes {
		if string(t) == strings.ToLower(strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown device type %q", s)
}

// IsS390 reports whether t is an s390 channel device type.
func (t DeviceType) IsS390() bool {
	switch t {
	case TypeQETH, TypeHSI, TypeCTC, TypeLCS, TypeIUCV:
		return true
	}
	return false
}

// IsVirtual reports whether devices of type t exist without hardware.
func (t DeviceType) IsVirtual() bool {
	switch t {
	case TypeBond, TypeBridge, TypeVLAN, TypeTun, TypeTap, TypeDummy:
		return true
	}
	return false
}

var (
	vlanNameRegex = regexp.MustCompile(`^(.+)\.(\d+)$`)
	numSuffix     = regexp.MustCompile(`^([a-z]+)\d*$`)
)

// TypeFromName guesses a device type from an interface name.
func TypeFromName(name string) DeviceType {
	if name == "lo" {
		return TypeLoopback
	}
	if vlanNameRegex.MatchString(name) || strings.HasPrefix(name, "vlan") {
		return TypeVLAN
	}
	prefixes := []struct {
		prefix string
		typ    DeviceType
	}{
		{"bond", TypeBond},
		{"br", TypeBridge},
		{"wlan", TypeWireless},
		{"wl", TypeWireless},
		{"ib", TypeInfiniband},
		{"qeth", TypeQETH},
		{"hsi", TypeHSI},
		{"ctc", TypeCTC},
		{"lcs", TypeLCS},
		{"iucv", TypeIUCV},
		{"tun", TypeTun},
		{"tap", TypeTap},
		{"dummy", TypeDummy},
		{"usb", TypeUSB},
	}
	if m := numSuffix.FindStringSubmatch(name); m != nil {
		for _, p := range prefixes {
			if m[1] == p.prefix {
				return p.typ
			}
		}
	}
	for _, p := range prefixes {
		if p.prefix != "ib" && strings.HasPrefix(name, p.prefix) {
			return p.typ
		}
	}
	return TypeEthernet
}

// Ifcfg is the configuration of one interface (ifcfg-<Name>).
type Ifcfg struct {
	Name string
	*File
}

// NewIfcfg returns an empty configuration for name.
func NewIfcfg(name string) *Ifcfg {
	return &Ifcfg{Name: name, File: NewFile()}
}

// Clone returns a deep copy.
func (c *Ifcfg) Clone() *Ifcfg {
	return &Ifcfg{Name: c.Name, File: c.File.Clone()}
}

func yes(v string) bool {
	return strings.EqualFold(v, "yes")
}

// BootProto returns BOOTPROTO, defaulting to static as ifup does.
func (c *Ifcfg) BootProto() string {
	if v := strings.ToLower(c.Get(KeyBootProto)); v != "" {
		return v
	}
	return BootStatic
}

// StartMode returns STARTMODE, defaulting to manual as ifup does.
func (c *Ifcfg) StartMode() string {
	if v := strings.ToLower(c.Get(KeyStartMode)); v != "" {
		return v
	}
	return StartManual
}

// IsDHCP reports whether the interface obtains its address dynamically.
func (c *Ifcfg) IsDHCP() bool {
	return strings.HasPrefix(c.BootProto(), "dhcp")
}

// Description returns the NAME field.
func (c *Ifcfg) Description() string {
	return c.Get(KeyName)
}

// Zone returns the firewall zone the interface is bound to.
func (c *Ifcfg) Zone() string {
	return c.Get(KeyZone)
}

// MTU returns the configured MTU or 0.
func (c *Ifcfg) MTU() int {
	n, _ := strconv.Atoi(c.Get(KeyMTU))
	return n
}

// Type resolves the device type from the configuration, falling back to the name.
func (c *Ifcfg) Type() DeviceType {
	if t := c.Get(KeyInterfaceType); t != "" {
		if dt, err := ParseDeviceType(t); err == nil {
			return dt
		}
	}
	switch {
	case yes(c.Get(KeyBondingMaster)):
		return TypeBond
	case yes(c.Get(KeyBridge)):
		return TypeBridge
	case c.Get(KeyEtherDevice) != "":
		return TypeVLAN
	}
	switch strings.ToLower(c.Get(KeyTunnel)) {
	case "tun":
		return TypeTun
	case "tap":
		return TypeTap
	}
	if c.Get(KeyWirelessMode) != "" || c.Get(KeyWirelessESSID) != "" {
		return TypeWireless
	}
	return TypeFromName(c.Name)
}

// Address is one IPv4/IPv6 address of an interface. Suffix is empty for the
// primary IPADDR and holds the key suffix for IPADDR_<suffix> aliases.
type Address struct {
	Suffix string
	Prefix netip.Prefix
	Label  string
}

func (a Address) String() string {
	return a.Prefix.String()
}

func suffixKey(base, suffix string) string {
	if suffix == "" {
		return base
	}
	return base + "_" + suffix
}

// ParseCIDR accepts "addr/len" or a bare address and returns a prefix. A
// bare address gets the full host length; netmask or prefixlen, when set,
// override it.
func ParseCIDR(ip, netmask, prefixLen string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(ip); err == nil {
		return p, nil
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address %q", ip)
	}
	bits := addr.BitLen()
	switch {
	case prefixLen != "":
		n, err := strconv.Atoi(prefixLen)
		if err != nil || n < 0 || n > addr.BitLen() {
			return netip.Prefix{}, fmt.Errorf("invalid prefix length %q", prefixLen)
		}
		bits = n
	case netmask != "":
		n, err := MaskToPrefixLen(netmask)
		if err != nil {
			return netip.Prefix{}, err
		}
		bits = n
	}
	return addr.Prefix(bits)
}

// ParseAddrPrefix is like ParseCIDR but keeps the host bits of the address.
func ParseAddrPrefix(ip, netmask, prefixLen string) (netip.Prefix, error) {
	p, err := ParseCIDR(ip, netmask, prefixLen)
	if err != nil {
		return p, err
	}
	addr := p.Addr()
	if a, err := netip.ParseAddr(strings.SplitN(ip, "/", 2)[0]); err == nil {
		addr = a
	}
	return netip.PrefixFrom(addr, p.Bits()), nil
}

// MaskToPrefixLen converts a dotted IPv4 netmask to a prefix length.
func MaskToPrefixLen(mask string) (int, error) {
	ip := net.ParseIP(mask).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid netmask %q", mask)
	}
	ones, bits := net.IPMask(ip).Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous netmask %q", mask)
	}
	return ones, nil
}

// Addresses returns the primary address followed by the IPADDR_<suffix>
// aliases sorted by suffix.
func (c *Ifcfg) Addresses() ([]Address, error) {
	var out []Address
	for _, key := range c.KeysWithPrefix(KeyIPAddr) {
		suffix := ""
		if key != KeyIPAddr {
			s, ok := strings.CutPrefix(key, KeyIPAddr+"_")
			if !ok {
				continue
			}
			suffix = s
		}
		ip := c.Get(key)
		if ip == "" {
			continue
		}
		p, err := ParseAddrPrefix(ip, c.Get(suffixKey(KeyNetmask, suffix)), c.Get(suffixKey(KeyPrefixLen, suffix)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, Address{Suffix: suffix, Prefix: p, Label: c.Get(suffixKey(KeyLabel, suffix))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Suffix == "" {
			return out[j].Suffix != ""
		}
		if out[j].Suffix == "" {
			return false
		}
		return out[i].Suffix < out[j].Suffix
	})
	return out, nil
}

// PrimaryAddress returns the IPADDR address, if any.
func (c *Ifcfg) PrimaryAddress() (netip.Prefix, bool) {
	ip := c.Get(KeyIPAddr)
	if ip == "" {
		return netip.Prefix{}, false
	}
	p, err := ParseAddrPrefix(ip, c.Get(KeyNetmask), c.Get(KeyPrefixLen))
	if err != nil {
		return netip.Prefix{}, false
	}
	return p, true
}

// SetAddress writes an address in CIDR form and removes the legacy
// NETMASK/PREFIXLEN companions of the same suffix.
func (c *Ifcfg) SetAddress(suffix string, p netip.Prefix, label string) {
	c.Set(suffixKey(KeyIPAddr, suffix), p.String())
	c.Delete(suffixKey(KeyNetmask, suffix))
	c.Delete(suffixKey(KeyPrefixLen, suffix))
	if suffix != "" {
		c.SetOrDelete(suffixKey(KeyLabel, suffix), label)
	}
}

// ClearAddresses removes every static address setting.
func (c *Ifcfg) ClearAddresses() {
	for _, prefix := range []string{KeyIPAddr, KeyNetmask, KeyPrefixLen, KeyLabel, KeyBroadcast, KeyRemoteIPAddr} {
		c.DeletePrefix(prefix)
	}
}

// Slaves returns the BONDING_SLAVE<n> values ordered by n.
func (c *Ifcfg) Slaves() []string {
	type slave struct {
		idx  int
		name string
	}
	var slaves []slave
	for _, key := range c.KeysWithPrefix(KeyBondingSlave) {
		n, err := strconv.Atoi(strings.TrimPrefix(key, KeyBondingSlave))
		if err != nil {
			continue
		}
		if v := c.Get(key); v != "" {
			slaves = append(slaves, slave{n, v})
		}
	}
	sort.Slice(slaves, func(i, j int) bool { return slaves[i].idx < slaves[j].idx })
	names := make([]string, len(slaves))
	for i, s := range slaves {
		names[i] = s.name
	}
	return names
}

// SetSlaves rewrites the BONDING_SLAVE<n> list densely from 0.
func (c *Ifcfg) SetSlaves(names []string) {
	for _, key := range c.KeysWithPrefix(KeyBondingSlave) {
		if _, err := strconv.Atoi(strings.TrimPrefix(key, KeyBondingSlave)); err == nil {
			c.Delete(key)
		}
	}
	for i, n := range names {
		c.Set(fmt.Sprintf("%s%d", KeyBondingSlave, i), n)
	}
}

// BridgePorts returns the BRIDGE_PORTS list.
func (c *Ifcfg) BridgePorts() []string {
	return strings.Fields(c.Get(KeyBridgePorts))
}

// SetBridgePorts writes BRIDGE_PORTS.
func (c *Ifcfg) SetBridgePorts(ports []string) {
	c.Set(KeyBridgePorts, strings.Join(ports, " "))
}

// Members returns the bond slaves or bridge ports of a composite device.
func (c *Ifcfg) Members() []string {
	switch c.Type() {
	case TypeBond:
		return c.Slaves()
	case TypeBridge:
		return c.BridgePorts()
	}
	return nil
}

// SetMembers writes the member list appropriate for the device type.
func (c *Ifcfg) SetMembers(names []string) error {
	switch c.Type() {
	case TypeBond:
		c.SetSlaves(names)
	case TypeBridge:
		c.SetBridgePorts(names)
	default:
		return fmt.Errorf("%s is not a bond or bridge", c.Name)
	}
	return nil
}

// EtherDevice returns the VLAN parent device.
func (c *Ifcfg) EtherDevice() string {
	return c.Get(KeyEtherDevice)
}

// VlanID returns VLAN_ID, or the id encoded in a <parent>.<id> name.
func (c *Ifcfg) VlanID() int {
	if v := c.Get(KeyVlanID); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	if m := vlanNameRegex.FindStringSubmatch(c.Name); m != nil {
		n, _ := strconv.Atoi(m[2])
		return n
	}
	return 0
}

// ApplyTypeDefaults writes the marker keys that make Type() return t.
func (c *Ifcfg) ApplyTypeDefaults(t DeviceType) {
	switch t {
	case TypeBond:
		c.Set(KeyBondingMaster, "yes")
		if !c.Has(KeyBondingOptions) {
			c.Set(KeyBondingOptions, "mode=active-backup miimon=100")
		}
	case TypeBridge:
		c.Set(KeyBridge, "yes")
		if !c.Has(KeyBridgeSTP) {
			c.Set(KeyBridgeSTP, "off")
		}
		if !c.Has(KeyBridgeFwdDelay) {
			c.Set(KeyBridgeFwdDelay, "15")
		}
		if !c.Has(KeyBridgePorts) {
			c.Set(KeyBridgePorts, "")
		}
	case TypeTun, TypeTap:
		c.Set(KeyTunnel, string(t))
	case TypeDummy:
		c.Set(KeyInterfaceType, string(t))
	case TypeVLAN:
		if m := vlanNameRegex.FindStringSubmatch(c.Name); m != nil {
			if !c.Has(KeyEtherDevice) {
				c.Set(KeyEtherDevice, m[1])
			}
			if !c.Has(KeyVlanID) {
				c.Set(KeyVlanID, m[2])
			}
		} else if TypeFromName(c.Name) != TypeVLAN {
			// ETHERDEVICE marks it as a VLAN once set; until then the name does not
			c.Set(KeyInterfaceType, string(TypeVLAN))
		}
	}
}

// ResetForMember turns the configuration into that of a bond slave or
// bridge port: no addresses, no IP setup.
func (c *Ifcfg) ResetForMember(startMode string) {
	c.ClearAddresses()
	c.Set(KeyBootProto, BootNone)
	c.Set(KeyStartMode, startMode)
}

// ReplaceReference rewrites references to device from (slave lists, bridge
// ports, VLAN parent) with to. An empty to drops the member reference. It
// reports whether anything changed.
func (c *Ifcfg) ReplaceReference(from, to string) bool {
	changed := false
	if slaves := c.Slaves(); len(slaves) > 0 {
		if out, ok := replaceName(slaves, from, to); ok {
			c.SetSlaves(out)
			changed = true
		}
	}
	if c.Has(KeyBridgePorts) {
		if out, ok := replaceName(c.BridgePorts(), from, to); ok {
			c.SetBridgePorts(out)
			changed = true
		}
	}
	if c.EtherDevice() == from && to != "" {
		c.Set(KeyEtherDevice, to)
		changed = true
	}
	return changed
}

func replaceName(names []string, from, to string) ([]string, bool) {
	out := make([]string, 0, len(names))
	changed := false
	for _, n := range names {
		if n == from {
			changed = true
			if to == "" {
				continue
			}
			n = to
		}
		out = append(out, n)
	}
	return out, changed
}
