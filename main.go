package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/lancfg/cmd"
	"grimm.is/lancfg/internal/brand"
	"grimm.is/lancfg/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

func main() {
	var g cmd.Globals
	globalFlags := flag.NewFlagSet(brand.BinaryName, flag.ExitOnError)
	globalFlags.StringVar(&g.ConfigFile, "config", brand.DefaultConfigFile(), "Tool configuration file")
	globalFlags.StringVar(&g.ConfigFile, "c", brand.DefaultConfigFile(), "Tool configuration file (short)")
	globalFlags.StringVar(&g.Root, "root", "", "Edit the system below this directory (commands are only printed)")
	globalFlags.StringVar(&g.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	globalFlags.BoolVar(&g.JSONLog, "json-log", false, "Log in JSON")
	globalFlags.Usage = printUsage
	globalFlags.Parse(os.Args[1:])

	args := globalFlags.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command, rest := args[0], args[1:]

	switch command {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version":
		printer.Printf("%s %s\n", brand.Name, brand.Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := cmd.NewEnv(g)
	if err != nil {
		fail(err)
	}
	defer env.Close()

	if err := run(ctx, env, command, rest); err != nil {
		env.Close()
		fail(err)
	}
}

func fail(err error) {
	printer.Fprintf(os.Stderr, "%s\n", cmd.DescribeError(err))
	os.Exit(1)
}

// visited returns the names of the flags given on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func selectorFlags(fs *flag.FlagSet) *cmd.Selector {
	sel := &cmd.Selector{}
	fs.IntVar(&sel.ID, "id", -1, "Device id as shown by list")
	fs.StringVar(&sel.Name, "name", "", "Device name")
	return sel
}

// deviceFlags registers the settings shared by add and edit. The returned
// function must be called after parsing.
func deviceFlags(fs *flag.FlagSet) func() cmd.DeviceSettings {
	bootproto := fs.String("bootproto", "", "static, dhcp, dhcp4, dhcp6, dhcp+autoip, autoip, none")
	ip := fs.String("ip", "", "Address in CIDR form; empty removes all addresses")
	startmode := fs.String("startmode", "", "auto, hotplug, manual, off, nfsroot, ifplugd")
	slaves := fs.String("slaves", "", "Bond slaves, space separated")
	ports := fs.String("ports", "", "Bridge ports, space separated")
	parent := fs.String("parent", "", "VLAN parent device")
	vlanID := fs.Int("vlan-id", 0, "VLAN id")
	zone := fs.String("zone", "", "Firewall zone")
	mtu := fs.Int("mtu", 0, "MTU; 0 removes the setting")
	desc := fs.String("description", "", "Device description")
	ethtool := fs.String("ethtool", "", "ETHTOOL_OPTIONS value")

	return func() cmd.DeviceSettings {
		set := visited(fs)
		var s cmd.DeviceSettings
		if set["bootproto"] {
			s.BootProto = bootproto
		}
		if set["ip"] {
			s.IP = ip
		}
		if set["startmode"] {
			s.StartMode = startmode
		}
		if set["slaves"] {
			s.Slaves = slaves
		}
		if set["ports"] {
			s.Ports = ports
		}
		if set["parent"] {
			s.Parent = parent
		}
		if set["vlan-id"] {
			s.VlanID = vlanID
		}
		if set["zone"] {
			s.Zone = zone
		}
		if set["mtu"] {
			s.MTU = mtu
		}
		if set["description"] {
			s.Description = desc
		}
		if set["ethtool"] {
			s.Ethtool = ethtool
		}
		return s
	}
}

func run(ctx context.Context, env *cmd.Env, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)

	switch command {
	case "list":
		var opts cmd.ListOptions
		fs.BoolVar(&opts.Configured, "configured", false, "Only configured devices")
		fs.BoolVar(&opts.Unconfigured, "unconfigured", false, "Only unconfigured devices")
		fs.Parse(args)
		return cmd.RunList(ctx, env, opts)

	case "show":
		sel := selectorFlags(fs)
		format := fs.String("format", "text", "Output format: text, json, yaml")
		fs.Parse(args)
		return cmd.RunShow(ctx, env, *sel, *format)

	case "add":
		var opts cmd.AddOptions
		fs.StringVar(&opts.Name, "name", "", "Device name (default: first free name of the type)")
		fs.StringVar(&opts.Type, "type", "", "Device type: eth, wlan, bond, br, vlan, tun, tap, ...")
		fs.BoolVar(&opts.DryRun, "dry-run", false, "Show the changes without writing")
		settings := deviceFlags(fs)
		fs.Parse(args)
		opts.Settings = settings()
		return cmd.RunAdd(ctx, env, opts)

	case "edit":
		var opts cmd.EditOptions
		sel := selectorFlags(fs)
		fs.BoolVar(&opts.DryRun, "dry-run", false, "Show the changes without writing")
		settings := deviceFlags(fs)
		fs.Parse(args)
		opts.Selector = *sel
		opts.Settings = settings()
		return cmd.RunEdit(ctx, env, opts)

	case "delete":
		sel := selectorFlags(fs)
		dryRun := fs.Bool("dry-run", false, "Show the changes without writing")
		fs.Parse(args)
		return cmd.RunDelete(ctx, env, *sel, *dryRun)

	case "rename":
		var opts cmd.RenameOptions
		fs.StringVar(&opts.Name, "name", "", "Current device name")
		fs.StringVar(&opts.To, "to", "", "New device name")
		fs.StringVar(&opts.By, "by", "", "Match the device by mac or busid")
		fs.BoolVar(&opts.Bios, "bios", false, "Use the name biosdevname reports")
		fs.BoolVar(&opts.DryRun, "dry-run", false, "Show the changes without writing")
		fs.Parse(args)
		return cmd.RunRename(ctx, env, opts)

	case "propose":
		dryRun := fs.Bool("dry-run", false, "Show the changes without writing")
		fs.Parse(args)
		return cmd.RunPropose(ctx, env, *dryRun)

	case "candidates":
		master := fs.String("name", "", "Bond or bridge")
		fs.Parse(args)
		return cmd.RunCandidates(ctx, env, *master)

	case "dns":
		var opts cmd.DNSOptions
		hostname := fs.String("hostname", "", "Host name, optionally fully qualified")
		domain := fs.String("domain", "", "Domain name")
		servers := fs.String("nameservers", "", "Name servers, comma or space separated")
		search := fs.String("search", "", "Search domains, comma or space separated")
		policy := fs.String("policy", "", "netconfig DNS policy")
		writeHostname := fs.Bool("write-hostname", false, "Bind the host name to 127.0.0.2 in /etc/hosts")
		fs.StringVar(&opts.HostIP, "host-ip", "", "Address the host name resolves to in /etc/hosts")
		fs.BoolVar(&opts.Apply, "apply", false, "Run netconfig after writing")
		fs.Parse(args)
		set := visited(fs)
		if set["hostname"] {
			opts.Hostname = hostname
		}
		if set["domain"] {
			opts.Domain = domain
		}
		if set["nameservers"] {
			opts.Nameservers = servers
		}
		if set["search"] {
			opts.Search = search
		}
		if set["policy"] {
			opts.Policy = policy
		}
		if set["write-hostname"] {
			opts.WriteHostname = writeHostname
		}
		return cmd.RunDNS(ctx, env, opts)

	case "dhcp":
		var opts cmd.DHCPOptions
		fs.StringVar(&opts.Device, "name", "", "Override the options for this device only")
		hostnameOption := fs.String("hostname-option", "", "Host name sent in requests (AUTO for the system name)")
		setHostname := fs.Bool("set-hostname", false, "Take the host name from the DHCP server")
		setDefaultRoute := fs.Bool("set-default-route", true, "Take the default route from the DHCP server")
		clientID := fs.String("client-id", "", "DHCP client identifier")
		writeHosts := fs.Bool("write-hosts", true, "Write the host name to /etc/hosts")
		fs.BoolVar(&opts.DryRun, "dry-run", false, "Show the changes without writing")
		fs.Parse(args)
		set := visited(fs)
		if set["hostname-option"] {
			opts.HostnameOption = hostnameOption
		}
		if set["set-hostname"] {
			opts.SetHostname = setHostname
		}
		if set["set-default-route"] {
			opts.SetDefaultRoute = setDefaultRoute
		}
		if set["client-id"] {
			opts.ClientID = clientID
		}
		if set["write-hosts"] {
			opts.WriteHosts = writeHosts
		}
		return cmd.RunDHCPOptions(ctx, env, opts)

	case "route":
		return runRoute(ctx, env, args)

	case "forwarding":
		var opts cmd.ForwardingOptions
		ipv4 := fs.Bool("ipv4", false, "Enable IPv4 forwarding")
		ipv6 := fs.Bool("ipv6", false, "Enable IPv6 forwarding")
		fs.BoolVar(&opts.Apply, "apply", false, "Also switch the running kernel")
		fs.Parse(args)
		set := visited(fs)
		if set["ipv4"] {
			opts.IPv4 = ipv4
		}
		if set["ipv6"] {
			opts.IPv6 = ipv6
		}
		return cmd.RunForwarding(ctx, env, opts)

	case "probe":
		asFixture := fs.Bool("fixture", false, "Print the hardware in fixture format")
		fs.Parse(args)
		return cmd.RunProbe(ctx, env, *asFixture)

	case "dhcp-probe":
		iface := fs.String("name", "", "Interface to probe")
		fs.Parse(args)
		return cmd.RunDHCPProbe(ctx, env, *iface)

	case "status":
		fs.Parse(args)
		return cmd.RunStatus(ctx, env, fs.Args())

	case "check":
		verbose := fs.Bool("verbose", false, "Print a summary")
		fs.BoolVar(verbose, "v", false, "Print a summary (short)")
		fs.Parse(args)
		return cmd.RunCheck(ctx, env, *verbose)

	case "apply":
		var opts cmd.ApplyOptions
		fs.BoolVar(&opts.S390, "s390", false, "Enable s390 channel devices first")
		fs.BoolVar(&opts.DNS, "dns", false, "Run netconfig")
		fs.Parse(args)
		opts.Devices = fs.Args()
		return cmd.RunApply(ctx, env, opts)

	case "install-import":
		path := fs.String("file", "", "install.inf to read (default: the configured path)")
		dryRun := fs.Bool("dry-run", false, "Show the changes without writing")
		fs.Parse(args)
		return cmd.RunInstallImport(ctx, env, *path, *dryRun)

	case "export":
		out := fs.String("output", "", "Profile file to write (default: standard output)")
		fs.StringVar(out, "o", "", "Profile file to write (short)")
		fs.Parse(args)
		return cmd.RunExport(ctx, env, *out)

	case "import":
		dryRun := fs.Bool("dry-run", false, "Show the interface changes without writing")
		fs.Parse(args)
		if fs.NArg() != 1 {
			printer.Fprintf(os.Stderr, "Usage: %s import [--dry-run] <profile>\n", brand.BinaryName)
			os.Exit(2)
		}
		return cmd.RunImport(ctx, env, fs.Arg(0), *dryRun)
	}

	printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
	printUsage()
	os.Exit(1)
	return nil
}

func runRoute(ctx context.Context, env *cmd.Env, args []string) error {
	if len(args) == 0 {
		return cmd.RunRouteList(ctx, env)
	}
	sub, args := args[0], args[1:]
	fs := flag.NewFlagSet("route "+sub, flag.ExitOnError)
	var opts cmd.RouteOptions
	fs.StringVar(&opts.Destination, "dest", "", "Destination in CIDR form or default")
	fs.StringVar(&opts.Gateway, "gw", "", "Gateway address")
	fs.StringVar(&opts.Netmask, "netmask", "", "Netmask for destinations without a prefix length")
	fs.StringVar(&opts.Interface, "dev", "", "Interface")
	fs.BoolVar(&opts.PerDevice, "per-device", false, "Store in the ifroute file of the interface")
	fs.Parse(args)

	switch sub {
	case "list":
		return cmd.RunRouteList(ctx, env)
	case "add":
		return cmd.RunRouteAdd(ctx, env, opts)
	case "delete":
		return cmd.RunRouteDelete(ctx, env, opts)
	}
	printer.Fprintf(os.Stderr, "Unknown route command: %s (want list, add or delete)\n", sub)
	os.Exit(1)
	return nil
}

func printUsage() {
	printer.Printf(`%s - %s

Usage:
  %s [global options] <command> [options]

Global Options:
  --config (-c) <file>   Tool configuration (default %s)
  --root <dir>           Edit an offline system below <dir>
  --log-level <level>    debug, info, warn, error
  --json-log             Log in JSON

Device Commands:
  list        List network devices
              Options: --configured, --unconfigured
  show        Show one device
              Options: --id <n> | --name <dev>, --format text|json|yaml
  add         Configure a device or create a virtual one
              Options: --name, --type, --bootproto, --ip, --startmode, --slaves,
                       --ports, --parent, --vlan-id, --zone, --mtu, --description,
                       --ethtool, --dry-run
  edit        Change device settings (same options as add, plus --id)
  delete      Remove a device configuration
              Options: --id <n> | --name <dev>, --dry-run
  rename      Give a device a persistent name
              Options: --name, --to | --bios, --by mac|busid, --dry-run
  candidates  List possible bond slaves or bridge ports
              Options: --name <master>
  propose     Configure DHCP on one NIC when nothing is configured
              Options: --dry-run

Host Commands:
  dns         Show or change host name and name servers
              Options: --hostname, --domain, --nameservers, --search, --policy,
                       --write-hostname, --host-ip, --apply
  dhcp        Show or change DHCP client options
              Options: --name <dev>, --hostname-option, --set-hostname[=false],
                       --set-default-route[=false], --client-id, --write-hosts[=false],
                       --dry-run
  route       Static routes: route [list|add|delete]
              Options: --dest, --gw, --netmask, --dev, --per-device
  forwarding  Show or change IP forwarding
              Options: --ipv4[=false], --ipv6[=false], --apply

System Commands:
  probe       List network hardware
              Options: --fixture
  dhcp-probe  Look for a DHCP server
              Options: --name <dev>
  status      Show the runtime state of devices: status [dev...]
  check       Validate the device configurations
              Options: --verbose (-v)
  apply       Activate the written configuration: apply [dev...]
              Options: --s390, --dns

Import Commands:
  install-import  Configure the network the installer used
                  Options: --file <install.inf>, --dry-run
  export          Write the setup as a profile
                  Options: --output (-o) <file>
  import          Replay a profile: import [--dry-run] <file>
  version         Print the version

Examples:
  %s list
  %s add --type bond --slaves "eth1 eth2" --ip 10.0.0.1/24
  %s edit --name eth0 --bootproto dhcp --dry-run
  %s rename --name eth0 --to lan0 --by busid
  %s --root /mnt route add --dest default --gw 192.168.0.1
`,
		brand.Name, brand.Description,
		brand.LowerName, brand.DefaultConfigFile(),
		brand.LowerName, brand.LowerName, brand.LowerName, brand.LowerName, brand.LowerName)
}
