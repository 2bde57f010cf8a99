package sysconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
)

const (
	ifcfgPrefix   = "ifcfg-"
	ifroutePrefix = "ifroute-"
)

// backupSuffixes mark files ifup ignores; they are never treated as configs.
var backupSuffixes = []string{"~", ".bak", ".rpmnew", ".rpmsave", ".orig", ".old", ".tmp", ".scpmbackup"}

// IsBackupName reports whether a file name carries a backup suffix.
func IsBackupName(name string) bool {
	for _, s := range backupSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Store reads ifcfg-* files in a sysconfig network directory. Writes go
// through lan.Items.Commit.
type Store struct {
	dir string
	log *logging.Logger
}

// NewStore returns a store rooted at dir (normally /etc/sysconfig/network).
func NewStore(dir string) *Store {
	return &Store{dir: dir, log: logging.WithComponent("sysconfig")}
}

// Dir returns the directory the store manages.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the ifcfg file path for an interface.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, ifcfgPrefix+name)
}

// RoutePath returns the ifroute file path for an interface.
func (s *Store) RoutePath(name string) string {
	return filepath.Join(s.dir, ifroutePrefix+name)
}

// List returns the configured interface names, sorted. Loopback is skipped
// unless includeLoopback is set.
func (s *Store) List(includeLoopback bool) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, lcerrors.IO("failed to list "+s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), ifcfgPrefix) || IsBackupName(e.Name()) {
			continue
		}
		name := strings.TrimPrefix(e.Name(), ifcfgPrefix)
		if name == "" || (name == "lo" && !includeLoopback) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load reads ifcfg-<name>.
func (s *Store) Load(name string) (*Ifcfg, error) {
	f, err := LoadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lcerrors.NotFound("configuration", name)
		}
		return nil, lcerrors.IO("failed to read ifcfg-"+name, err)
	}
	return &Ifcfg{Name: name, File: f}, nil
}

// LoadAll reads every configuration in the directory. Unparsable files are
// logged and skipped so that one broken file does not hide the others.
func (s *Store) LoadAll() ([]*Ifcfg, error) {
	names, err := s.List(false)
	if err != nil {
		return nil, err
	}
	cfgs := make([]*Ifcfg, 0, len(names))
	for _, name := range names {
		c, err := s.Load(name)
		if err != nil {
			s.log.Warn("skipping unreadable configuration", "name", name, "error", err)
			continue
		}
		cfgs = append(cfgs, c)
	}
	return cfgs, nil
}
