// Package dns manages the host name and the static resolver settings.
//
// The resolver itself is written by netconfig from the NETCONFIG_DNS_* keys
// of the sysconfig network config file; this package edits those keys,
// /etc/hostname and /etc/hosts, and triggers "netconfig update".
package dns

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/miekg/dns"

	lcerrors "grimm.is/lancfg/internal/errors"
)

// netconfig keys in sysconfig/network/config.
const (
	KeyStaticServers    = "NETCONFIG_DNS_STATIC_SERVERS"
	KeyStaticSearchlist = "NETCONFIG_DNS_STATIC_SEARCHLIST"
	KeyPolicy           = "NETCONFIG_DNS_POLICY"
)

// Resolver limits of glibc.
const (
	MaxNameservers   = 3
	MaxSearchDomains = 6
	maxSearchLength  = 256
)

// HostnameIP is the loopback address the host name is bound to when no
// static address resolves it.
const HostnameIP = "127.0.0.2"

// DefaultPolicy lets netconfig merge static and DHCP provided settings.
const DefaultPolicy = "auto"

var labelRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// Settings is the host name and static resolver configuration.
type Settings struct {
	Hostname      string   `json:"hostname" yaml:"hostname"`
	Domain        string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Nameservers   []string `json:"nameservers,omitempty" yaml:"nameservers,omitempty"`
	Searchlist    []string `json:"searchlist,omitempty" yaml:"searchlist,omitempty"`
	Policy        string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	WriteHostname bool     `json:"write_hostname" yaml:"write_hostname"`
}

// FQDN returns hostname.domain, or the bare host name without a domain.
func (s *Settings) FQDN() string {
	if s.Domain == "" {
		return s.Hostname
	}
	return s.Hostname + "." + s.Domain
}

// hostNames lists the names the host is known by in /etc/hosts.
func (s *Settings) hostNames() []string {
	if s.Hostname == "" {
		return nil
	}
	if s.Domain == "" {
		return []string{s.Hostname}
	}
	return []string{s.FQDN(), s.Hostname}
}

// ValidHostname reports whether name is a single DNS label.
func ValidHostname(name string) bool {
	return labelRegex.MatchString(name)
}

// ValidDomain reports whether name is a dotted host name.
func ValidDomain(name string) bool {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return false
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return false
	}
	for _, label := range dns.SplitDomainName(name) {
		if !labelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// Validate checks every field and returns all problems.
func (s *Settings) Validate() error {
	var verrs lcerrors.ValidationErrors

	if s.Hostname != "" && !ValidHostname(s.Hostname) {
		verrs.Add("hostname", "%q is not a valid host name", s.Hostname)
	}
	if s.Domain != "" && !ValidDomain(s.Domain) {
		verrs.Add("domain", "%q is not a valid domain", s.Domain)
	}
	if s.Hostname != "" && s.Domain != "" && len(s.FQDN()) > 253 {
		verrs.Add("domain", "host name %s is too long", s.FQDN())
	}

	if len(s.Nameservers) > MaxNameservers {
		verrs.Add("nameservers", "at most %d name servers are used", MaxNameservers)
	}
	for _, ns := range s.Nameservers {
		if _, err := netip.ParseAddr(ns); err != nil {
			verrs.Add("nameservers", "%q is not an IP address", ns)
		}
	}

	if len(s.Searchlist) > MaxSearchDomains {
		verrs.Add("searchlist", "at most %d search domains are used", MaxSearchDomains)
	}
	if n := len(strings.Join(s.Searchlist, " ")); n > maxSearchLength {
		verrs.Add("searchlist", "search list is %d characters, the limit is %d", n, maxSearchLength)
	}
	for _, d := range s.Searchlist {
		if !ValidDomain(d) {
			verrs.Add("searchlist", "%q is not a valid domain", d)
		}
	}

	return verrs.Err()
}
