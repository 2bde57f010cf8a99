// Package config loads the tool's own HCL configuration and reads and writes
// network profiles.
//
// # Configuration file
//
// The file is optional; every setting has a default. Blocks:
//   - paths: locations of the files the tool edits, below root
//   - naming: how new persistent names are bound to hardware
//   - backend: the service used to activate changes
//   - log: log level and format
//
// Example:
//
//	paths {
//	  root = "/mnt"
//	}
//	naming {
//	  mechanism = "busid"
//	}
//	backend {
//	  name    = "wicked"
//	  dry_run = true
//	}
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/lancfg/internal/brand"
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/udev"
)

// CurrentSchemaVersion is written to exported profiles.
const CurrentSchemaVersion = "1.0"

// Config is the top-level structure of lancfg.hcl.
type Config struct {
	SchemaVersion string         `hcl:"schema_version,optional" json:"schema_version,omitempty"`
	Paths         *PathsConfig   `hcl:"paths,block" json:"paths,omitempty"`
	Naming        *NamingConfig  `hcl:"naming,block" json:"naming,omitempty"`
	Backend       *BackendConfig `hcl:"backend,block" json:"backend,omitempty"`
	Log           *LogConfig     `hcl:"log,block" json:"log,omitempty"`
}

// PathsConfig locates the edited files. All paths except Root are taken
// relative to Root.
type PathsConfig struct {
	Root       string `hcl:"root,optional" json:"root"`
	Sysconfig  string `hcl:"sysconfig,optional" json:"sysconfig"`
	UdevRules  string `hcl:"udev_rules,optional" json:"udev_rules"`
	Sysctl     string `hcl:"sysctl,optional" json:"sysctl"`
	InstallInf string `hcl:"install_inf,optional" json:"install_inf"`

	// HardwareFixture replaces kernel probing with a YAML device list.
	HardwareFixture string `hcl:"hardware_fixture,optional" json:"hardware_fixture,omitempty"`
}

// NamingConfig selects the hardware identifier for new udev name rules.
type NamingConfig struct {
	Mechanism string `hcl:"mechanism,optional" json:"mechanism"` // "mac" or "busid"
}

// BackendConfig selects how changes are activated.
type BackendConfig struct {
	Name             string `hcl:"name,optional" json:"name"` // auto, wicked, NetworkManager, ifup, none
	DryRun           bool   `hcl:"dry_run,optional" json:"dry_run"`
	DHCPProbeTimeout string `hcl:"dhcp_probe_timeout,optional" json:"dhcp_probe_timeout,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `hcl:"level,optional" json:"level"`
	JSON  bool   `hcl:"json,optional" json:"json"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Paths == nil {
		c.Paths = &PathsConfig{}
	}
	if c.Paths.Root == "" {
		c.Paths.Root = "/"
	}
	if c.Paths.Sysconfig == "" {
		c.Paths.Sysconfig = brand.SysconfigDir
	}
	if c.Paths.UdevRules == "" {
		c.Paths.UdevRules = brand.UdevRulesFile
	}
	if c.Paths.Sysctl == "" {
		c.Paths.Sysctl = brand.SysctlFile
	}
	if c.Paths.InstallInf == "" {
		c.Paths.InstallInf = brand.InstallInf
	}
	if c.Naming == nil {
		c.Naming = &NamingConfig{}
	}
	if c.Naming.Mechanism == "" {
		c.Naming.Mechanism = string(udev.MechanismMAC)
	}
	if c.Backend == nil {
		c.Backend = &BackendConfig{}
	}
	if c.Backend.Name == "" {
		c.Backend.Name = "auto"
	}
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, lcerrors.IO("failed to read config file", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes configuration source. The syntax is chosen by the
// extension of filename; anything but .json is read as HCL.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(hclName(filename), data, nil, &cfg); err != nil {
		return nil, lcerrors.Wrap(lcerrors.ErrCodeConfig, "failed to decode config", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have a fixed vocabulary.
func (c *Config) Validate() error {
	var errs lcerrors.ValidationErrors
	if _, err := udev.ParseMechanism(c.Naming.Mechanism); err != nil {
		errs.Add("naming.mechanism", "must be mac or busid, got %q", c.Naming.Mechanism)
	}
	if _, err := network.ParseBackend(c.Backend.Name); err != nil {
		errs.Add("backend.name", "unknown backend %q", c.Backend.Name)
	}
	if c.Backend.DHCPProbeTimeout != "" {
		if d, err := time.ParseDuration(c.Backend.DHCPProbeTimeout); err != nil || d <= 0 {
			errs.Add("backend.dhcp_probe_timeout", "invalid duration %q", c.Backend.DHCPProbeTimeout)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs.Add("log.level", "unknown level %q", c.Log.Level)
	}
	if !filepath.IsAbs(c.Paths.Root) {
		errs.Add("paths.root", "must be absolute, got %q", c.Paths.Root)
	}
	return errs.Err()
}

// In returns path below the configured root.
func (p *PathsConfig) In(path string) string {
	if p.Root == "" || p.Root == "/" {
		return path
	}
	return filepath.Join(p.Root, path)
}

// SysconfigDir is the resolved ifcfg directory.
func (p *PathsConfig) SysconfigDir() string { return p.In(p.Sysconfig) }

// RoutesFile is the resolved global routes file.
func (p *PathsConfig) RoutesFile() string { return filepath.Join(p.SysconfigDir(), "routes") }

// DHCPFile is the resolved global DHCP client options file.
func (p *PathsConfig) DHCPFile() string { return filepath.Join(p.SysconfigDir(), "dhcp") }

// Mechanism returns the parsed naming mechanism.
func (c *Config) Mechanism() udev.Mechanism {
	m, err := udev.ParseMechanism(c.Naming.Mechanism)
	if err != nil {
		return udev.MechanismMAC
	}
	return m
}

// ProbeTimeout returns the DHCP probe timeout, zero for the default.
func (c *Config) ProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Backend.DHCPProbeTimeout)
	return d
}
