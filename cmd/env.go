// Package cmd implements the lancfg subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"grimm.is/lancfg/internal/config"
	"grimm.is/lancfg/internal/dhcp"
	"grimm.is/lancfg/internal/dns"
	"grimm.is/lancfg/internal/firewall"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/i18n"
	"grimm.is/lancfg/internal/lan"
	"grimm.is/lancfg/internal/logging"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/routing"
	"grimm.is/lancfg/internal/sysconfig"
)

// Printer formats all user-facing output.
var Printer = i18n.NewCLIPrinter()

// Globals are the flags accepted before the command name.
type Globals struct {
	ConfigFile string
	Root       string
	LogLevel   string
	JSONLog    bool
}

// Env carries the loaded configuration and the system interfaces a command
// works with. Tests build one directly.
type Env struct {
	Config *config.Config
	Out    io.Writer
	Prober hardware.Prober
	Exec   network.CommandExecutor
	Net    *network.Service
	DHCP   dhcp.Prober

	closers []func()
}

// NewEnv loads the configuration and sets up logging and the system
// services. A root other than "/" is an offline target: commands are
// recorded instead of run.
func NewEnv(g Globals) (*Env, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}
	if g.Root != "" {
		root, err := filepath.Abs(g.Root)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", g.Root, err)
		}
		cfg.Paths.Root = root
	}

	levelName := cfg.Log.Level
	if g.LogLevel != "" {
		levelName = g.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logging.New(logging.Config{
		Level:  level,
		Output: os.Stderr,
		JSON:   cfg.Log.JSON || g.JSONLog,
	}))

	env := &Env{
		Config: cfg,
		Out:    os.Stdout,
		DHCP:   dhcp.ClientProber{Timeout: cfg.ProbeTimeout()},
	}
	if cfg.Backend.DryRun || cfg.Paths.Root != "/" {
		exec := network.NewDryRunExecutor()
		env.Exec = exec
		env.Net = network.NewServiceWithDeps(&network.DryRunNetlinker{}, &network.DryRunSystemController{}, exec)
	} else {
		env.Exec = network.DefaultCommandExecutor
		env.Net = network.NewService()
	}
	backend, err := network.ParseBackend(cfg.Backend.Name)
	if err != nil {
		return nil, err
	}
	env.Net.SetBackend(backend)
	return env, nil
}

// Close releases the resources opened by the environment.
func (e *Env) Close() {
	for _, fn := range e.closers {
		fn()
	}
	e.closers = nil
}

// DryRun reports whether system commands are only recorded.
func (e *Env) DryRun() bool {
	_, ok := e.Exec.(*network.DryRunExecutor)
	return ok
}

func (e *Env) hardware() (hardware.Prober, error) {
	if e.Prober != nil {
		return e.Prober, nil
	}
	if fixture := e.Config.Paths.HardwareFixture; fixture != "" {
		p, err := hardware.LoadFixture(fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to load hardware fixture: %w", err)
		}
		e.Prober = p
		return p, nil
	}
	p, closer, err := hardware.NewNetlinkProber()
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closer)
	e.Prober = p
	return p, nil
}

// Store returns the ifcfg store.
func (e *Env) Store() *sysconfig.Store {
	return sysconfig.NewStore(e.Config.Paths.SysconfigDir())
}

// Items reads the device list.
func (e *Env) Items(ctx context.Context) (*lan.Items, error) {
	prober, err := e.hardware()
	if err != nil {
		return nil, err
	}
	paths := e.Config.Paths
	return lan.Read(ctx, lan.Config{
		Prober:     prober,
		Store:      e.Store(),
		RulesPath:  paths.In(paths.UdevRules),
		RoutesPath: paths.RoutesFile(),
		Naming:     e.Config.Mechanism(),
		Root:       paths.Root,
	})
}

// DNS returns the host name and resolver store.
func (e *Env) DNS() *dns.Store {
	return dns.NewStore(dns.DefaultPaths(e.Config.Paths.Root, e.Config.Paths.Sysconfig), e.Exec)
}

// Routes returns the static route files.
func (e *Env) Routes() *routing.Routes {
	return routing.New(e.Config.Paths.SysconfigDir())
}

// SysctlFile is the persistent forwarding settings file.
func (e *Env) SysctlFile() string {
	return e.Config.Paths.In(e.Config.Paths.Sysctl)
}

// Zones returns the firewalld zone client.
func (e *Env) Zones() *firewall.Zones {
	return firewall.New(e.Exec)
}

func (e *Env) printf(format string, args ...any) {
	Printer.Fprintf(e.Out, format, args...)
}
