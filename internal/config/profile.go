package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/sysconfig"
)

// Profile is a portable description of a network setup, used to replay a
// configuration on another machine.
//
//	interface "eth0" {
//	  settings = {
//	    BOOTPROTO = "dhcp"
//	    STARTMODE = "auto"
//	  }
//	}
//	udev "eth0" {
//	  mechanism = "mac"
//	  value     = "52:54:00:aa:bb:01"
//	}
//	route {
//	  destination = "default"
//	  gateway     = "192.168.0.1"
//	}
type Profile struct {
	SchemaVersion string             `hcl:"schema_version,optional" json:"schema_version,omitempty"`
	Interfaces    []ProfileInterface `hcl:"interface,block" json:"interfaces,omitempty"`
	Udev          []ProfileUdev      `hcl:"udev,block" json:"udev,omitempty"`
	Routes        []ProfileRoute     `hcl:"route,block" json:"routes,omitempty"`
	DNS           *ProfileDNS        `hcl:"dns,block" json:"dns,omitempty"`
	Forwarding    *ProfileForwarding `hcl:"forwarding,block" json:"forwarding,omitempty"`
}

// ProfileInterface carries the ifcfg variables of one interface.
type ProfileInterface struct {
	Name     string            `hcl:"name,label" json:"name"`
	Settings map[string]string `hcl:"settings,optional" json:"settings,omitempty"`
}

// ProfileUdev binds a persistent name to a hardware identifier.
type ProfileUdev struct {
	Name      string `hcl:"name,label" json:"name"`
	Mechanism string `hcl:"mechanism" json:"mechanism"`
	Value     string `hcl:"value" json:"value"`
}

// ProfileRoute is one static route.
type ProfileRoute struct {
	Destination string `hcl:"destination" json:"destination"`
	Gateway     string `hcl:"gateway,optional" json:"gateway,omitempty"`
	Netmask     string `hcl:"netmask,optional" json:"netmask,omitempty"`
	Interface   string `hcl:"interface,optional" json:"interface,omitempty"`
}

// ProfileDNS is the host name and resolver setup.
type ProfileDNS struct {
	Hostname      string   `hcl:"hostname,optional" json:"hostname,omitempty"`
	Domain        string   `hcl:"domain,optional" json:"domain,omitempty"`
	Nameservers   []string `hcl:"nameservers,optional" json:"nameservers,omitempty"`
	Searchlist    []string `hcl:"searchlist,optional" json:"searchlist,omitempty"`
	Policy        string   `hcl:"policy,optional" json:"policy,omitempty"`
	WriteHostname bool     `hcl:"write_hostname,optional" json:"write_hostname"`
}

// ProfileForwarding holds the IP forwarding switches.
type ProfileForwarding struct {
	IPv4 bool `hcl:"ipv4,optional" json:"ipv4"`
	IPv6 bool `hcl:"ipv6,optional" json:"ipv6"`
}

// Route converts r into the sysconfig form.
func (r ProfileRoute) Route() sysconfig.Route {
	return sysconfig.Route{
		Destination: r.Destination,
		Gateway:     r.Gateway,
		Netmask:     r.Netmask,
		Interface:   r.Interface,
	}
}

// ProfileRouteFrom converts a sysconfig route.
func ProfileRouteFrom(r sysconfig.Route) ProfileRoute {
	return ProfileRoute{
		Destination: r.Destination,
		Gateway:     r.Gateway,
		Netmask:     r.Netmask,
		Interface:   r.Interface,
	}
}

// DecodeProfile parses profile source.
func DecodeProfile(filename string, data []byte) (*Profile, error) {
	var p Profile
	if err := hclsimple.Decode(hclName(filename), data, nil, &p); err != nil {
		return nil, lcerrors.Wrap(lcerrors.ErrCodeConfig, "failed to decode profile", err)
	}
	seen := make(map[string]bool)
	for _, it := range p.Interfaces {
		if seen[it.Name] {
			return nil, lcerrors.Invalid("profile: interface %q defined twice", it.Name)
		}
		seen[it.Name] = true
	}
	return &p, nil
}

// LoadProfile reads a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lcerrors.NotFound("profile", path)
		}
		return nil, lcerrors.IO("failed to read profile", err)
	}
	return DecodeProfile(path, data)
}

// hclName makes hclsimple read anything but .json files as HCL.
func hclName(filename string) string {
	if ext := filepath.Ext(filename); ext == ".hcl" || ext == ".json" {
		return filename
	}
	return filename + ".hcl"
}

func stringList(vals []string) cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.StringVal(v)
	}
	return cty.ListVal(out)
}

func stringMap(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	out := make(map[string]cty.Value, len(m))
	for k, v := range m {
		out[k] = cty.StringVal(v)
	}
	return cty.MapVal(out)
}

func setOptional(body *hclwrite.Body, name, value string) {
	if value != "" {
		body.SetAttributeValue(name, cty.StringVal(value))
	}
}

// Bytes renders the profile as formatted HCL.
func (p *Profile) Bytes() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	version := p.SchemaVersion
	if version == "" {
		version = CurrentSchemaVersion
	}
	body.SetAttributeValue("schema_version", cty.StringVal(version))

	for _, it := range p.Interfaces {
		body.AppendNewline()
		b := body.AppendNewBlock("interface", []string{it.Name}).Body()
		if len(it.Settings) > 0 {
			b.SetAttributeValue("settings", stringMap(it.Settings))
		}
	}

	udevRules := append([]ProfileUdev(nil), p.Udev...)
	sort.SliceStable(udevRules, func(i, j int) bool { return udevRules[i].Name < udevRules[j].Name })
	for _, u := range udevRules {
		body.AppendNewline()
		b := body.AppendNewBlock("udev", []string{u.Name}).Body()
		b.SetAttributeValue("mechanism", cty.StringVal(u.Mechanism))
		b.SetAttributeValue("value", cty.StringVal(u.Value))
	}

	for _, r := range p.Routes {
		body.AppendNewline()
		b := body.AppendNewBlock("route", nil).Body()
		b.SetAttributeValue("destination", cty.StringVal(r.Destination))
		setOptional(b, "gateway", r.Gateway)
		setOptional(b, "netmask", r.Netmask)
		setOptional(b, "interface", r.Interface)
	}

	if d := p.DNS; d != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("dns", nil).Body()
		setOptional(b, "hostname", d.Hostname)
		setOptional(b, "domain", d.Domain)
		if len(d.Nameservers) > 0 {
			b.SetAttributeValue("nameservers", stringList(d.Nameservers))
		}
		if len(d.Searchlist) > 0 {
			b.SetAttributeValue("searchlist", stringList(d.Searchlist))
		}
		setOptional(b, "policy", d.Policy)
		b.SetAttributeValue("write_hostname", cty.BoolVal(d.WriteHostname))
	}

	if fw := p.Forwarding; fw != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("forwarding", nil).Body()
		b.SetAttributeValue("ipv4", cty.BoolVal(fw.IPv4))
		b.SetAttributeValue("ipv6", cty.BoolVal(fw.IPv6))
	}

	return hclwrite.Format(f.Bytes())
}

// Save writes the profile to path.
func (p *Profile) Save(path string) error {
	if err := sysconfig.WriteFileAtomic(path, p.Bytes(), 0600); err != nil {
		return lcerrors.IO("failed to write profile", err)
	}
	return nil
}
