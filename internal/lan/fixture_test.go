package lan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

type fixture struct {
	root       string
	dir        string
	rulesPath  string
	routesPath string
	nics       hardware.StaticProber
}

func defaultNICs() hardware.StaticProber {
	return hardware.StaticProber{
		{Name: "eth0", MAC: "52:54:00:aa:bb:01", BusID: "0000:00:03.0", Driver: "e1000e", Type: sysconfig.TypeEthernet},
		{Name: "eth1", MAC: "52:54:00:aa:bb:02", BusID: "0000:00:04.0", Driver: "e1000e", Type: sysconfig.TypeEthernet, Link: true},
		{Name: "eth2", MAC: "52:54:00:aa:bb:03", BusID: "0000:00:05.0", DevPort: "0", Driver: "mlx4_en", Type: sysconfig.TypeEthernet},
		{Name: "eth3", MAC: "52:54:00:aa:bb:04", BusID: "0000:00:05.0", DevPort: "1", Driver: "mlx4_en", Type: sysconfig.TypeEthernet},
		{Name: "eth4", MAC: "02:00:00:00:07:00", BusID: "0.0.0700", Driver: "qeth_l3", Type: sysconfig.TypeQETH,
			S390: &hardware.S390Channel{Read: "0.0.0700", Write: "0.0.0701", Data: "0.0.0702"}},
		{Name: "eth5", MAC: "02:00:00:00:08:00", BusID: "0.0.0800", Driver: "qeth_l2", Type: sysconfig.TypeQETH,
			S390: &hardware.S390Channel{Read: "0.0.0800", Write: "0.0.0801", Data: "0.0.0802", Layer2: true}},
		{Name: "usb0", MAC: "52:54:00:aa:bb:05", Driver: "cdc_ether", Type: sysconfig.TypeUSB},
		{Name: "wlan0", MAC: "52:54:00:aa:bb:06", BusID: "0000:03:00.0", Driver: "iwlwifi", Type: sysconfig.TypeWireless, Link: true},
	}
}

const defaultRules = `SUBSYSTEM=="net", ACTION=="add", DRIVERS=="?*", ATTR{address}=="52:54:00:aa:bb:01", ATTR{type}=="1", NAME="eth0"
SUBSYSTEM=="net", ACTION=="add", DRIVERS=="?*", ATTR{address}=="52:54:00:aa:bb:02", ATTR{type}=="1", NAME="eth1"
`

var defaultConfigs = map[string]string{
	"eth0":    "BOOTPROTO='static'\nIPADDR='192.168.0.10/24'\nSTARTMODE='auto'\n",
	"eth1":    "BOOTPROTO='none'\nSTARTMODE='hotplug'\n",
	"eth2":    "BOOTPROTO='none'\nSTARTMODE='auto'\n",
	"bond0":   "BONDING_MASTER='yes'\nBONDING_MODULE_OPTS='mode=active-backup miimon=100'\nBONDING_SLAVE0='eth1'\nBOOTPROTO='static'\nIPADDR='10.0.0.1/24'\nSTARTMODE='auto'\n",
	"br0":     "BRIDGE='yes'\nBRIDGE_PORTS='eth2'\nBOOTPROTO='dhcp'\nSTARTMODE='auto'\n",
	"eth0.10": "ETHERDEVICE='eth0'\nVLAN_ID='10'\nBOOTPROTO='dhcp'\nSTARTMODE='auto'\n",
	"tap0":    "TUNNEL='tap'\nBOOTPROTO='static'\nSTARTMODE='auto'\n",
	"eth9":    "BOOTPROTO='dhcp'\nSTARTMODE='auto'\n",
}

func newEmptyFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:       root,
		dir:        filepath.Join(root, "etc", "sysconfig", "network"),
		rulesPath:  filepath.Join(root, "etc", "udev", "rules.d", "70-persistent-net.rules"),
		routesPath: filepath.Join(root, "etc", "sysconfig", "network", "routes"),
		nics:       defaultNICs(),
	}
	require.NoError(t, os.MkdirAll(f.dir, 0755))
	return f
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := newEmptyFixture(t)
	for name, content := range defaultConfigs {
		f.ifcfg(t, name, content)
	}
	f.write(t, f.rulesPath, defaultRules)
	f.write(t, f.routesPath, "default 192.168.0.1 - eth0\n10.20.0.0/16 10.0.0.254 - bond0\n")
	f.write(t, filepath.Join(f.dir, "ifroute-eth0"), "172.16.0.0/12 192.168.0.254 - eth0\n")
	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) ifcfg(t *testing.T, name, content string) {
	t.Helper()
	f.write(t, filepath.Join(f.dir, "ifcfg-"+name), content)
}

func (f *fixture) config() Config {
	return Config{
		Prober:     f.nics,
		Store:      sysconfig.NewStore(f.dir),
		RulesPath:  f.rulesPath,
		RoutesPath: f.routesPath,
		Naming:     udev.MechanismMAC,
		Root:       f.root,
	}
}

func (f *fixture) read(t *testing.T) *Items {
	t.Helper()
	items, err := Read(context.Background(), f.config())
	require.NoError(t, err)
	return items
}

func names(list []*Item) []string {
	out := make([]string, len(list))
	for i, it := range list {
		out[i] = it.Name
	}
	return out
}

func candidateNames(list []Candidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Item.Name
	}
	return out
}

func mustFind(t *testing.T, items *Items, name string) *Item {
	t.Helper()
	it, err := items.Find(name)
	require.NoError(t, err)
	return it
}
