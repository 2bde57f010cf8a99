// Package installinf reads the network parameters the installer left in
// install.inf and turns them into a configuration proposal.
package installinf

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"

	"grimm.is/lancfg/internal/dns"
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

var nameserverKey = regexp.MustCompile(`^nameserver[0-9]*$`)

// InstallInf is a parsed install.inf. Keys are matched case-insensitively.
type InstallInf struct {
	values map[string]string
	keys   []string
}

// Parse reads "Key: value" lines. Blank lines and # comments are skipped.
func Parse(r io.Reader) (*InstallInf, error) {
	inf := &InstallInf{values: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ':' in %q", n, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if _, seen := inf.values[key]; !seen {
			inf.keys = append(inf.keys, key)
		}
		inf.values[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return inf, nil
}

// Load reads install.inf at path.
func Load(path string) (*InstallInf, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lcerrors.NotFound("file", path)
		}
		return nil, lcerrors.IO("failed to read "+path, err)
	}
	defer f.Close()
	inf, err := Parse(f)
	if err != nil {
		return nil, lcerrors.Wrap(lcerrors.ErrCodeValidation, path, err)
	}
	return inf, nil
}

// Get returns the value of key.
func (i *InstallInf) Get(key string) string {
	return i.values[strings.ToLower(key)]
}

func (i *InstallInf) Netdevice() string { return i.Get("Netdevice") }
func (i *InstallInf) NetConfig() string { return strings.ToLower(i.Get("NetConfig")) }
func (i *InstallInf) IP() string { return i.Get("IP") }
func (i *InstallInf) Netmask() string { return i.Get("Netmask") }
func (i *InstallInf) Gateway() string { return i.Get("Gateway") }
func (i *InstallInf) Domain() string { return i.Get("Domain") }
func (i *InstallInf) Hostname() string { return i.Get("Hostname") }
func (i *InstallInf) HWAddr() string { return strings.ToLower(i.Get("HWAddr")) }
func (i *InstallInf) WlanESSID() string { return i.Get("WlanESSID") }
func (i *InstallInf) WlanAuth() string { return strings.ToLower(i.Get("WlanAuth")) }
func (i *InstallInf) WlanKey() string { return i.Get("WlanKey") }
func (i *InstallInf) Nameserver() string { return i.Get("Nameserver") }
func (i *InstallInf) IPv6() bool { return yes(i.Get("IPv6")) }
func (i *InstallInf) IsDHCP() bool { return strings.HasPrefix(i.NetConfig(), "dhcp") }
func (i *InstallInf) HasNetwork() bool { return i.Netdevice() != "" || i.HWAddr() != "" }

// ConnectWait is the number of seconds to wait for the link.
func (i *InstallInf) ConnectWait() int {
	n, _ := strconv.Atoi(i.Get("ConnectWait"))
	return n
}

func yes(v string) bool {
	switch strings.ToLower(v) {
	case "1", "yes", "true":
		return true
	}
	return false
}

// Nameservers returns the Nameserver, Nameserver2 ... values in file order.
// A value may list several servers separated by commas or spaces.
func (i *InstallInf) Nameservers() []string {
	var out []string
	for _, k := range i.keys {
		if !nameserverKey.MatchString(k) {
			continue
		}
		for _, ns := range strings.FieldsFunc(i.values[k], func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, ns)
		}
	}
	return out
}

// Device returns the interface the installer used: Netdevice, or the NIC
// whose MAC address is HWAddr.
func (i *InstallInf) Device(nics []hardware.NIC) (string, error) {
	if d := i.Netdevice(); d != "" {
		return d, nil
	}
	mac := i.HWAddr()
	if mac == "" {
		return "", lcerrors.NotFound("install.inf key", "Netdevice")
	}
	for idx := range nics {
		if strings.EqualFold(nics[idx].HardwareMAC(), mac) || strings.EqualFold(nics[idx].MAC, mac) {
			return nics[idx].Name, nil
		}
	}
	return "", lcerrors.NotFound("device with address", mac)
}

// ToIfcfg converts the installer network setup into a configuration for
// device name.
func (i *InstallInf) ToIfcfg(name string) (*sysconfig.Ifcfg, error) {
	c := sysconfig.NewIfcfg(name)
	c.Set(sysconfig.KeyStartMode, sysconfig.StartAuto)

	switch cfg := i.NetConfig(); {
	case i.IsDHCP():
		bp := sysconfig.BootDHCP
		if cfg == "dhcp6" {
			bp = sysconfig.BootDHCP6
		} else if cfg == "dhcp4" {
			bp = sysconfig.BootDHCP4
		}
		c.Set(sysconfig.KeyBootProto, bp)
	case cfg == "static" || (cfg == "" && i.IP() != ""):
		prefix, err := sysconfig.ParseAddrPrefix(i.IP(), i.Netmask(), "")
		if err != nil {
			return nil, lcerrors.Invalid("install.inf: %v", err)
		}
		c.Set(sysconfig.KeyBootProto, sysconfig.BootStatic)
		c.SetAddress("", prefix, "")
	default:
		return nil, lcerrors.Invalid("install.inf: unsupported NetConfig %q", cfg)
	}

	if essid := i.WlanESSID(); essid != "" {
		c.Set(sysconfig.KeyWirelessMode, "Managed")
		c.Set(sysconfig.KeyWirelessESSID, essid)
		switch i.WlanAuth() {
		case "", "none", "open":
			c.Set(sysconfig.KeyWirelessAuth, "no-encryption")
		case "psk", "wpa-psk":
			c.Set(sysconfig.KeyWirelessAuth, "psk")
			c.Set(sysconfig.KeyWirelessPSK, i.WlanKey())
		default:
			return nil, lcerrors.Invalid("install.inf: unsupported WlanAuth %q", i.WlanAuth())
		}
	}
	return c, nil
}

// DefaultRoute returns the gateway as a default route over device.
func (i *InstallInf) DefaultRoute(device string) (sysconfig.Route, bool) {
	gw := i.Gateway()
	if gw == "" || i.IsDHCP() {
		return sysconfig.Route{}, false
	}
	if _, err := netip.ParseAddr(gw); err != nil {
		return sysconfig.Route{}, false
	}
	return sysconfig.Route{Destination: sysconfig.DefaultDestination, Gateway: gw, Interface: device}, true
}

// DNS returns the resolver settings from install.inf. The host name may be
// given fully qualified.
func (i *InstallInf) DNS() *dns.Settings {
	st := &dns.Settings{
		Nameservers: i.Nameservers(),
		Domain:      i.Domain(),
	}
	host, domain, found := strings.Cut(i.Hostname(), ".")
	st.Hostname = host
	if found && st.Domain == "" {
		st.Domain = domain
	}
	if st.Domain != "" {
		st.Searchlist = []string{st.Domain}
	}
	return st
}
