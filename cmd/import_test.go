package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lancfg/internal/config"
	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

const staticInstallInf = `Locale: en_US
HWAddr: 52:54:00:AA:BB:02
NetConfig: static
IP: 192.168.0.20
Netmask: 255.255.255.0
Gateway: 192.168.0.1
Hostname: inst.example.com
Nameserver: 192.168.0.1
`

func TestRunInstallImport(t *testing.T) {
	te := newTestEnv(t)
	te.write(t, te.Config.Paths.InstallInf, staticInstallInf)

	require.NoError(t, RunInstallImport(context.Background(), te.Env, "", false))

	c := te.readIfcfg(t, "eth1")
	assert.Contains(t, c, "BOOTPROTO='static'")
	assert.Contains(t, c, "IPADDR='192.168.0.20/24'")
	assert.Contains(t, c, "STARTMODE='auto'")
	assert.Equal(t, "default 192.168.0.1 - eth1\n", te.read(t, filepath.Join(te.Config.Paths.Sysconfig, "routes")))
	assert.Equal(t, "inst.example.com\n", te.read(t, "/etc/hostname"))
	assert.Contains(t, te.read(t, "/etc/hosts"), "192.168.0.20")
	assert.Contains(t, te.read(t, filepath.Join(te.Config.Paths.Sysconfig, "config")), "NETCONFIG_DNS_STATIC_SERVERS='192.168.0.1'")
}

func TestRunInstallImport_DryRun(t *testing.T) {
	te := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "install.inf")
	require.NoError(t, os.WriteFile(path, []byte(staticInstallInf), 0644))

	require.NoError(t, RunInstallImport(context.Background(), te.Env, path, true))
	out := te.out.String()
	assert.Contains(t, out, "+IPADDR='192.168.0.20/24'")
	assert.Contains(t, out, "default route: default 192.168.0.1 - eth1")
	assert.False(t, te.hasIfcfg("eth1"))
}

func TestRunInstallImport_Errors(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	err := RunInstallImport(ctx, te.Env, "", false)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)

	te.write(t, te.Config.Paths.InstallInf, "Locale: en_US\n")
	err = RunInstallImport(ctx, te.Env, "", false)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)

	te.write(t, te.Config.Paths.InstallInf, "HWAddr: 52:54:00:aa:bb:02\nNetConfig: bootp\n")
	err = RunInstallImport(ctx, te.Env, "", false)
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
}

func TestRunExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t)
	src.ifcfg(t, "eth0", "BOOTPROTO='static'\nIPADDR='192.168.0.10/24'\nSTARTMODE='auto'\nMTU='9000'\n")
	require.NoError(t, RunRouteAdd(ctx, src.Env, RouteOptions{Destination: "default", Gateway: "192.168.0.1"}))
	require.NoError(t, RunDNS(ctx, src.Env, DNSOptions{Hostname: ptr("node1.example.com"), Nameservers: ptr("192.168.0.1")}))
	require.NoError(t, RunForwarding(ctx, src.Env, ForwardingOptions{IPv4: ptr(true)}))

	src.out.Reset()
	require.NoError(t, RunExport(ctx, src.Env, ""))
	assert.Contains(t, src.out.String(), `interface "eth0"`)
	assert.Contains(t, src.out.String(), `udev "eth0"`)

	profilePath := filepath.Join(t.TempDir(), "node1.hcl")
	require.NoError(t, RunExport(ctx, src.Env, profilePath))
	p, err := config.LoadProfile(profilePath)
	require.NoError(t, err)
	require.Len(t, p.Interfaces, 1)
	assert.Equal(t, "9000", p.Interfaces[0].Settings[sysconfig.KeyMTU])
	require.Len(t, p.Udev, 1)
	assert.Equal(t, config.ProfileUdev{Name: "eth0", Mechanism: "mac", Value: "52:54:00:aa:bb:01"}, p.Udev[0])
	require.NotNil(t, p.Forwarding)
	assert.True(t, p.Forwarding.IPv4)

	// the same card shows up under another kernel name on the new machine
	dst := newTestEnv(t)
	require.NoError(t, os.Remove(dst.path(dst.Config.Paths.UdevRules)))
	require.NoError(t, os.Remove(dst.path(filepath.Join(dst.Config.Paths.Sysconfig, "ifcfg-eth0"))))
	dst.Prober = hardware.StaticProber{
		{Name: "enp0s3", MAC: "52:54:00:aa:bb:01", BusID: "0000:00:03.0", Driver: "e1000e", Type: sysconfig.TypeEthernet},
	}

	require.NoError(t, RunImport(ctx, dst.Env, profilePath, false))
	c := dst.readIfcfg(t, "eth0")
	assert.Contains(t, c, "IPADDR='192.168.0.10/24'")
	assert.Contains(t, c, "MTU='9000'")
	rules := dst.read(t, dst.Config.Paths.UdevRules)
	assert.Contains(t, rules, `ATTR{address}=="52:54:00:aa:bb:01"`)
	assert.Contains(t, rules, `NAME="eth0"`)
	assert.Equal(t, "default 192.168.0.1 - -\n", dst.read(t, filepath.Join(dst.Config.Paths.Sysconfig, "routes")))
	assert.Equal(t, "node1.example.com\n", dst.read(t, "/etc/hostname"))
	assert.Contains(t, dst.read(t, dst.Config.Paths.Sysctl), "net.ipv4.ip_forward = 1")
}

func TestRunImport_BindsNameAlreadyInUse(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t)
	require.NoError(t, os.Remove(te.path(te.Config.Paths.UdevRules)))
	p := &config.Profile{
		Interfaces: []config.ProfileInterface{
			{Name: "eth0", Settings: map[string]string{"BOOTPROTO": "dhcp", "STARTMODE": "auto"}},
		},
		Udev: []config.ProfileUdev{{Name: "eth0", Mechanism: "busid", Value: "0000:00:03.0"}},
	}
	path := filepath.Join(t.TempDir(), "p.hcl")
	require.NoError(t, p.Save(path))

	require.NoError(t, RunImport(ctx, te.Env, path, false))
	rules := te.read(t, te.Config.Paths.UdevRules)
	assert.Contains(t, rules, `KERNELS=="0000:00:03.0"`)
	assert.Contains(t, rules, `NAME="eth0"`)
	assert.Contains(t, te.readIfcfg(t, "eth0"), "BOOTPROTO='dhcp'")
}

func TestRunImport_DryRun(t *testing.T) {
	ctx := context.Background()
	te := newTestEnv(t)
	p := &config.Profile{
		Interfaces: []config.ProfileInterface{
			{Name: "eth0", Settings: map[string]string{"BOOTPROTO": "dhcp", "STARTMODE": "auto"}},
			{Name: "br0", Settings: map[string]string{"BRIDGE": "yes", "BRIDGE_PORTS": "", "BOOTPROTO": "dhcp", "STARTMODE": "auto"}},
		},
		Routes: []config.ProfileRoute{{Destination: "default", Gateway: "10.0.0.1"}},
	}
	path := filepath.Join(t.TempDir(), "p.hcl")
	require.NoError(t, p.Save(path))

	require.NoError(t, RunImport(ctx, te.Env, path, true))
	out := te.out.String()
	assert.Contains(t, out, "-IPADDR='192.168.0.10/24'")
	assert.Contains(t, out, "+BRIDGE='yes'")
	assert.Contains(t, out, "Dry run, nothing written.")
	assert.False(t, te.hasIfcfg("br0"))
	_, err := os.Stat(te.path(filepath.Join(te.Config.Paths.Sysconfig, "routes")))
	assert.True(t, os.IsNotExist(err))

	err = RunImport(ctx, te.Env, filepath.Join(t.TempDir(), "missing.hcl"), false)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}
