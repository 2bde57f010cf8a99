package dns

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/miekg/dns"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/sysconfig"
)

// Paths locates the files the store edits.
type Paths struct {
	Hostname   string
	Hosts      string
	Config     string // netconfig settings, sysconfig/network/config
	ResolvConf string
}

// DefaultPaths returns the standard locations below root.
func DefaultPaths(root, sysconfigDir string) Paths {
	return Paths{
		Hostname:   filepath.Join(root, "etc", "hostname"),
		Hosts:      filepath.Join(root, "etc", "hosts"),
		Config:     filepath.Join(root, sysconfigDir, "config"),
		ResolvConf: filepath.Join(root, "etc", "resolv.conf"),
	}
}

// Store reads and writes the host name and resolver settings.
type Store struct {
	paths Paths
	cmd   network.CommandExecutor
	log   *logging.Logger
}

// NewStore returns a store for paths; cmd runs netconfig.
func NewStore(paths Paths, cmd network.CommandExecutor) *Store {
	return &Store{paths: paths, cmd: cmd, log: logging.WithComponent("dns")}
}

func readHostname(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}
	return "", nil
}

// Read returns the current settings.
func (s *Store) Read() (*Settings, error) {
	st := &Settings{}

	name, err := readHostname(s.paths.Hostname)
	if err != nil {
		return nil, lcerrors.IO("failed to read host name", err)
	}
	st.Hostname, st.Domain, _ = strings.Cut(name, ".")

	cfg, err := sysconfig.LoadFileOrEmpty(s.paths.Config)
	if err != nil {
		return nil, lcerrors.IO("failed to read "+s.paths.Config, err)
	}
	st.Nameservers = strings.Fields(cfg.Get(KeyStaticServers))
	st.Searchlist = strings.Fields(cfg.Get(KeyStaticSearchlist))
	st.Policy = cfg.Get(KeyPolicy)

	hosts, err := LoadHosts(s.paths.Hosts)
	if err != nil {
		return nil, lcerrors.IO("failed to read "+s.paths.Hosts, err)
	}
	st.WriteHostname = st.Hostname != "" && slices.Contains(hosts.Names(HostnameIP), st.Hostname)
	return st, nil
}

// Write validates st and stores it. staticIP, when set, is the address of
// the device the host name resolves to; otherwise the name is bound to
// 127.0.0.2 if WriteHostname is set.
func (s *Store) Write(st *Settings, staticIP string) error {
	if err := st.Validate(); err != nil {
		return err
	}
	old, err := s.Read()
	if err != nil {
		return err
	}

	if st.Hostname != "" {
		if err := s.write(s.paths.Hostname, []byte(st.FQDN()+"\n")); err != nil {
			return err
		}
	}

	cfg, err := sysconfig.LoadFileOrEmpty(s.paths.Config)
	if err != nil {
		return lcerrors.IO("failed to read "+s.paths.Config, err)
	}
	cfg.Set(KeyStaticServers, strings.Join(st.Nameservers, " "))
	cfg.Set(KeyStaticSearchlist, strings.Join(st.Searchlist, " "))
	if st.Policy != "" {
		cfg.Set(KeyPolicy, st.Policy)
	}
	if err := s.write(s.paths.Config, cfg.Bytes()); err != nil {
		return err
	}

	hosts, err := LoadHosts(s.paths.Hosts)
	if err != nil {
		return lcerrors.IO("failed to read "+s.paths.Hosts, err)
	}
	names := st.hostNames()
	if !slices.Equal(old.hostNames(), names) {
		hosts.ReplaceNames(old.hostNames(), names)
	}
	switch {
	case len(names) > 0 && staticIP != "":
		hosts.Set(staticIP, names...)
		hosts.Remove(HostnameIP)
	case len(names) > 0 && st.WriteHostname:
		hosts.Set(HostnameIP, names...)
	default:
		hosts.Remove(HostnameIP)
	}
	return s.write(s.paths.Hosts, hosts.Bytes())
}

func (s *Store) write(path string, data []byte) error {
	if err := sysconfig.WriteFileAtomic(path, data, 0644); err != nil {
		return lcerrors.IO("failed to write "+path, err)
	}
	s.log.Audit("write", path, nil)
	return nil
}

// Apply makes netconfig regenerate resolv.conf from the stored settings.
func (s *Store) Apply(ctx context.Context) error {
	if _, err := s.cmd.RunCommand(ctx, "netconfig", "update", "-f"); err != nil {
		return lcerrors.Command("netconfig update failed", err)
	}
	s.log.Info("updated resolver configuration")
	return nil
}

// ResolvConf is the resolver configuration in effect.
type ResolvConf struct {
	Nameservers []string `json:"nameservers" yaml:"nameservers"`
	Search      []string `json:"search,omitempty" yaml:"search,omitempty"`
	Ndots       int      `json:"ndots" yaml:"ndots"`
	Timeout     int      `json:"timeout" yaml:"timeout"`
	Attempts    int      `json:"attempts" yaml:"attempts"`
}

// ReadResolvConf parses resolv.conf.
func (s *Store) ReadResolvConf() (*ResolvConf, error) {
	f, err := os.Open(s.paths.ResolvConf)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lcerrors.NotFound("file", s.paths.ResolvConf)
		}
		return nil, lcerrors.IO("failed to read "+s.paths.ResolvConf, err)
	}
	defer f.Close()

	cc, err := dns.ClientConfigFromReader(f)
	if err != nil {
		return nil, lcerrors.IO("failed to parse "+s.paths.ResolvConf, err)
	}
	return &ResolvConf{
		Nameservers: cc.Servers,
		Search:      cc.Search,
		Ndots:       cc.Ndots,
		Timeout:     cc.Timeout,
		Attempts:    cc.Attempts,
	}, nil
}
