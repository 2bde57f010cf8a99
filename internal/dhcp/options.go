// Package dhcp handles the DHCP client options and probes for DHCP servers.
package dhcp

import (
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/sysconfig"
)

// Keys of sysconfig/network/dhcp. The DHCLIENT_* keys may be overridden per
// interface in its ifcfg file.
const (
	KeyHostnameOption       = "DHCLIENT_HOSTNAME_OPTION"
	KeySetHostname          = "DHCLIENT_SET_HOSTNAME"
	KeySetDefaultRoute      = "DHCLIENT_SET_DEFAULT_ROUTE"
	KeyClientID             = "DHCLIENT_CLIENT_ID"
	KeyWriteHostnameToHosts = "WRITE_HOSTNAME_TO_HOSTS"
)

// HostnameAuto sends the system host name in DHCP requests.
const HostnameAuto = "AUTO"

// Options are the DHCP client settings.
type Options struct {
	HostnameOption       string `json:"hostname_option" yaml:"hostname_option"`
	SetHostname          bool   `json:"set_hostname" yaml:"set_hostname"`
	SetDefaultRoute      bool   `json:"set_default_route" yaml:"set_default_route"`
	ClientID             string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	WriteHostnameToHosts bool   `json:"write_hostname_to_hosts" yaml:"write_hostname_to_hosts"`
}

// Defaults returns the options of a fresh installation.
func Defaults() Options {
	return Options{
		HostnameOption:       HostnameAuto,
		SetHostname:          false,
		SetDefaultRoute:      true,
		WriteHostnameToHosts: true,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseYesNo(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "on", "1":
		return true
	case "no", "false", "off", "0":
		return false
	}
	return def
}

// fromFile overlays the keys present in f onto base.
func fromFile(base Options, f *sysconfig.File) Options {
	o := base
	if v, ok := f.Lookup(KeyHostnameOption); ok {
		o.HostnameOption = v
	}
	if v, ok := f.Lookup(KeySetHostname); ok {
		o.SetHostname = parseYesNo(v, o.SetHostname)
	}
	if v, ok := f.Lookup(KeySetDefaultRoute); ok {
		o.SetDefaultRoute = parseYesNo(v, o.SetDefaultRoute)
	}
	if v, ok := f.Lookup(KeyClientID); ok {
		o.ClientID = v
	}
	if v, ok := f.Lookup(KeyWriteHostnameToHosts); ok {
		o.WriteHostnameToHosts = parseYesNo(v, o.WriteHostnameToHosts)
	}
	return o
}

// Load reads the global options from path. Missing keys keep their default.
func Load(path string) (Options, error) {
	f, err := sysconfig.LoadFileOrEmpty(path)
	if err != nil {
		return Options{}, lcerrors.IO("failed to read "+path, err)
	}
	return fromFile(Defaults(), f), nil
}

// Save writes o to path, keeping comments and unrelated keys.
func (o Options) Save(path string) error {
	f, err := sysconfig.LoadFileOrEmpty(path)
	if err != nil {
		return lcerrors.IO("failed to read "+path, err)
	}
	f.Set(KeyHostnameOption, o.HostnameOption)
	f.Set(KeySetHostname, yesNo(o.SetHostname))
	f.Set(KeySetDefaultRoute, yesNo(o.SetDefaultRoute))
	f.Set(KeyClientID, o.ClientID)
	f.Set(KeyWriteHostnameToHosts, yesNo(o.WriteHostnameToHosts))
	if err := sysconfig.WriteFileAtomic(path, f.Bytes(), 0644); err != nil {
		return lcerrors.IO("failed to write "+path, err)
	}
	logging.WithComponent("dhcp").Audit("write", path, nil)
	return nil
}

// Effective returns the options that apply to the interface configured by c:
// the global options overridden by the DHCLIENT_* keys of c.
func (o Options) Effective(c *sysconfig.Ifcfg) Options {
	if c == nil {
		return o
	}
	eff := fromFile(o, c.File)
	eff.WriteHostnameToHosts = o.WriteHostnameToHosts
	return eff
}

// SetOverride records a per-interface override. An empty value removes it
// so the global option applies again.
func SetOverride(c *sysconfig.Ifcfg, key, value string) error {
	switch key {
	case KeyHostnameOption, KeySetHostname, KeySetDefaultRoute, KeyClientID:
	default:
		return lcerrors.Invalid("%s cannot be set per interface", key)
	}
	c.SetOrDelete(key, value)
	return nil
}
