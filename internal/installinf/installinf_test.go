package installinf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

const staticInf = `# written by linuxrc
Locale: en_US
NetConfig: static
HWAddr: 52:54:00:AA:BB:01
IP: 192.168.0.10
Netmask: 255.255.255.0
Gateway: 192.168.0.1
Hostname: node1.example.com
Nameserver: 192.168.0.1
Nameserver2: 9.9.9.9,1.1.1.1
ConnectWait: 15
`

func parse(t *testing.T, s string) *InstallInf {
	t.Helper()
	inf, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return inf
}

func TestParse(t *testing.T) {
	inf := parse(t, staticInf)
	assert.Equal(t, "static", inf.NetConfig())
	assert.Equal(t, "192.168.0.10", inf.Get("ip"))
	assert.Equal(t, "192.168.0.10", inf.Get("IP"))
	assert.Equal(t, "52:54:00:aa:bb:01", inf.HWAddr())
	assert.Equal(t, 15, inf.ConnectWait())
	assert.False(t, inf.IPv6())
	assert.False(t, inf.IsDHCP())
	assert.True(t, inf.HasNetwork())
	assert.Equal(t, []string{"192.168.0.1", "9.9.9.9", "1.1.1.1"}, inf.Nameservers())

	_, err := Parse(strings.NewReader("NetConfig: dhcp\nbroken line\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "install.inf"))
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)

	path := filepath.Join(dir, "bad.inf")
	require.NoError(t, os.WriteFile(path, []byte("nonsense\n"), 0644))
	_, err = Load(path)
	assert.ErrorIs(t, err, lcerrors.ErrValidation)

	path = filepath.Join(dir, "install.inf")
	require.NoError(t, os.WriteFile(path, []byte(staticInf), 0644))
	inf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.1", inf.Gateway())
}

func TestDevice(t *testing.T) {
	nics := []hardware.NIC{
		{Name: "eth0", MAC: "52:54:00:aa:bb:00"},
		{Name: "eth1", MAC: "52:54:00:aa:bb:02", PermanentMAC: "52:54:00:AA:BB:01"},
	}

	name, err := parse(t, staticInf).Device(nics)
	require.NoError(t, err)
	assert.Equal(t, "eth1", name)

	name, err = parse(t, "Netdevice: eth0\nHWAddr: 52:54:00:aa:bb:01\n").Device(nics)
	require.NoError(t, err)
	assert.Equal(t, "eth0", name, "Netdevice wins")

	_, err = parse(t, "HWAddr: 52:54:00:ff:ff:ff\n").Device(nics)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)

	_, err = parse(t, "NetConfig: dhcp\n").Device(nics)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestToIfcfg(t *testing.T) {
	tests := []struct {
		name string
		inf  string
		want map[string]string
		err  bool
	}{
		{
			name: "dhcp",
			inf:  "NetConfig: dhcp\n",
			want: map[string]string{"BOOTPROTO": "dhcp", "STARTMODE": "auto"},
		},
		{
			name: "dhcp4",
			inf:  "NetConfig: DHCP4\n",
			want: map[string]string{"BOOTPROTO": "dhcp4"},
		},
		{
			name: "dhcp6",
			inf:  "NetConfig: dhcp6\n",
			want: map[string]string{"BOOTPROTO": "dhcp6"},
		},
		{
			name: "static with netmask",
			inf:  staticInf,
			want: map[string]string{"BOOTPROTO": "static", "IPADDR": "192.168.0.10/24", "NETMASK": ""},
		},
		{
			name: "implicit static with prefix",
			inf:  "IP: 10.0.0.5/16\n",
			want: map[string]string{"BOOTPROTO": "static", "IPADDR": "10.0.0.5/16"},
		},
		{
			name: "wireless psk",
			inf:  "NetConfig: dhcp\nWlanESSID: home\nWlanAuth: psk\nWlanKey: secret123\n",
			want: map[string]string{
				"WIRELESS_MODE":      "Managed",
				"WIRELESS_ESSID":     "home",
				"WIRELESS_AUTH_MODE": "psk",
				"WIRELESS_WPA_PSK":   "secret123",
			},
		},
		{
			name: "wireless open",
			inf:  "NetConfig: dhcp\nWlanESSID: cafe\n",
			want: map[string]string{"WIRELESS_AUTH_MODE": "no-encryption", "WIRELESS_WPA_PSK": ""},
		},
		{name: "bad address", inf: "NetConfig: static\nIP: 10.0.0.500\n", err: true},
		{name: "unknown netconfig", inf: "NetConfig: ibft\n", err: true},
		{name: "no config", inf: "Hostname: x\n", err: true},
		{name: "unsupported wlan auth", inf: "NetConfig: dhcp\nWlanESSID: x\nWlanAuth: eap\n", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parse(t, tt.inf).ToIfcfg("eth0")
			if tt.err {
				assert.ErrorIs(t, err, lcerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "eth0", c.Name)
			for k, v := range tt.want {
				assert.Equal(t, v, c.Get(k), k)
			}
		})
	}
}

func TestDefaultRoute(t *testing.T) {
	r, ok := parse(t, staticInf).DefaultRoute("eth1")
	require.True(t, ok)
	assert.Equal(t, sysconfig.Route{Destination: "default", Gateway: "192.168.0.1", Interface: "eth1"}, r)

	_, ok = parse(t, "NetConfig: dhcp\nGateway: 192.168.0.1\n").DefaultRoute("eth1")
	assert.False(t, ok, "DHCP provides its own route")

	_, ok = parse(t, "NetConfig: static\nGateway: gw.example.com\n").DefaultRoute("eth1")
	assert.False(t, ok)
}

func TestDNS(t *testing.T) {
	st := parse(t, staticInf).DNS()
	assert.Equal(t, "node1", st.Hostname)
	assert.Equal(t, "example.com", st.Domain)
	assert.Equal(t, []string{"example.com"}, st.Searchlist)
	assert.Equal(t, []string{"192.168.0.1", "9.9.9.9", "1.1.1.1"}, st.Nameservers)

	st = parse(t, "Hostname: node2.lab.example.com\nDomain: example.org\n").DNS()
	assert.Equal(t, "node2", st.Hostname)
	assert.Equal(t, "example.org", st.Domain, "explicit Domain wins")

	st = parse(t, "NetConfig: dhcp\n").DNS()
	assert.Empty(t, st.Hostname)
	assert.Empty(t, st.Searchlist)
}
