package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/network"
)

func TestRunList(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, RunList(ctx, te.Env, ListOptions{}))
	out := te.out.String()
	assert.Contains(t, out, "192.168.0.10/24")
	assert.Contains(t, out, "not configured")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))

	te.out.Reset()
	require.NoError(t, RunList(ctx, te.Env, ListOptions{Configured: true}))
	lines = strings.Split(strings.TrimSpace(te.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "eth0")

	te.out.Reset()
	require.NoError(t, RunList(ctx, te.Env, ListOptions{Unconfigured: true}))
	assert.NotContains(t, te.out.String(), "eth0")
}

func TestRunShow(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, RunShow(ctx, te.Env, Selector{ID: -1, Name: "eth0"}, "json"))
	var v DeviceView
	require.NoError(t, json.Unmarshal(te.out.Bytes(), &v))
	assert.Equal(t, "eth0", v.Name)
	assert.True(t, v.Configured)
	assert.Equal(t, []string{"192.168.0.10/24"}, v.Addresses)
	assert.Contains(t, v.UdevRule, `NAME="eth0"`)
	require.NotNil(t, v.Hardware)
	assert.Equal(t, "e1000e", v.Hardware.Driver)

	te.out.Reset()
	require.NoError(t, RunShow(ctx, te.Env, Selector{ID: 1}, "text"))
	assert.Contains(t, te.out.String(), "eth1")
	assert.Contains(t, te.out.String(), "Configured:")

	te.out.Reset()
	require.NoError(t, RunShow(ctx, te.Env, Selector{ID: 2}, "yaml"))
	assert.Contains(t, te.out.String(), "name: eth2")

	err := RunShow(ctx, te.Env, Selector{ID: 0}, "xml")
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
	err = RunShow(ctx, te.Env, Selector{ID: -1}, "")
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
	err = RunShow(ctx, te.Env, Selector{ID: 9}, "")
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestRunAdd_Hardware(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, RunAdd(context.Background(), te.Env, AddOptions{Name: "eth1"}))

	c := te.readIfcfg(t, "eth1")
	assert.Contains(t, c, "BOOTPROTO='dhcp'")
	assert.Contains(t, c, "STARTMODE='auto'")
	assert.Contains(t, te.out.String(), "Added eth1.")
}

func TestRunAdd_BondWithSlave(t *testing.T) {
	te := newTestEnv(t)
	err := RunAdd(context.Background(), te.Env, AddOptions{
		Type: "bond",
		Settings: DeviceSettings{
			IP:     ptr("10.0.0.1/24"),
			Slaves: ptr("eth1"),
		},
	})
	require.NoError(t, err)

	bond := te.readIfcfg(t, "bond0")
	assert.Contains(t, bond, "BONDING_MASTER='yes'")
	assert.Contains(t, bond, "BONDING_SLAVE0='eth1'")
	assert.Contains(t, bond, "IPADDR='10.0.0.1/24'")
	assert.Contains(t, bond, "BOOTPROTO='static'")

	slave := te.readIfcfg(t, "eth1")
	assert.Contains(t, slave, "BOOTPROTO='none'")
	assert.Contains(t, slave, "STARTMODE='hotplug'")
	assert.Contains(t, te.out.String(), "Wrote 2 file(s).")
}

func TestRunAdd_Errors(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	err := RunAdd(ctx, te.Env, AddOptions{Name: "eth0"})
	assert.Equal(t, lcerrors.ErrCodeConflict, lcerrors.CodeOf(err))

	err = RunAdd(ctx, te.Env, AddOptions{})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)

	err = RunAdd(ctx, te.Env, AddOptions{Type: "token-ring"})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)

	err = RunAdd(ctx, te.Env, AddOptions{Name: "eth1", Settings: DeviceSettings{IP: ptr("not-an-ip")}})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)

	// the address is taken by eth0
	err = RunAdd(ctx, te.Env, AddOptions{Name: "eth1", Settings: DeviceSettings{IP: ptr("192.168.0.10/24")}})
	require.Error(t, err)
	assert.False(t, te.hasIfcfg("eth1"))
}

func TestRunAdd_VLANNeedsParent(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	err := RunAdd(ctx, te.Env, AddOptions{Name: "guest", Type: "vlan"})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
	assert.False(t, te.hasIfcfg("guest"))

	err = RunAdd(ctx, te.Env, AddOptions{Name: "guest", Type: "vlan", Settings: DeviceSettings{
		Parent: ptr("eth0"),
		VlanID: ptr(30),
	}})
	require.NoError(t, err)
	c := te.readIfcfg(t, "guest")
	assert.Contains(t, c, "INTERFACETYPE='vlan'")
	assert.Contains(t, c, "ETHERDEVICE='eth0'")
	assert.Contains(t, c, "VLAN_ID='30'")
}

func TestRunAdd_DryRun(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, RunAdd(context.Background(), te.Env, AddOptions{Name: "eth2", DryRun: true}))

	out := te.out.String()
	assert.Contains(t, out, "--- /dev/null")
	assert.Contains(t, out, "+BOOTPROTO='dhcp'")
	assert.Contains(t, out, "Dry run, nothing written.")
	assert.False(t, te.hasIfcfg("eth2"))
}

func TestRunEdit(t *testing.T) {
	te := newTestEnv(t)
	err := RunEdit(context.Background(), te.Env, EditOptions{
		Selector: Selector{ID: -1, Name: "eth0"},
		Settings: DeviceSettings{
			MTU:         ptr(9000),
			Description: ptr("uplink"),
			Zone:        ptr("external"),
		},
	})
	require.NoError(t, err)

	c := te.readIfcfg(t, "eth0")
	assert.True(t, strings.HasPrefix(c, "BOOTPROTO='static'\nIPADDR='192.168.0.10/24'\n"), "untouched lines keep their place")
	assert.Contains(t, c, "MTU='9000'")
	assert.Contains(t, c, "NAME='uplink'")
	assert.Contains(t, c, "ZONE='external'")
	assert.Contains(t, te.out.String(), "Updated eth0.")
}

func TestRunEdit_SwitchToDHCP(t *testing.T) {
	te := newTestEnv(t)
	err := RunEdit(context.Background(), te.Env, EditOptions{
		Selector: Selector{ID: 0},
		Settings: DeviceSettings{BootProto: ptr("DHCP"), IP: ptr("")},
	})
	require.NoError(t, err)

	c := te.readIfcfg(t, "eth0")
	assert.Contains(t, c, "BOOTPROTO='dhcp'")
	assert.NotContains(t, c, "IPADDR")
}

func TestRunEdit_NoChanges(t *testing.T) {
	te := newTestEnv(t)
	err := RunEdit(context.Background(), te.Env, EditOptions{
		Selector: Selector{ID: -1, Name: "eth0"},
		Settings: DeviceSettings{StartMode: ptr("auto")},
	})
	require.NoError(t, err)
	assert.Contains(t, te.out.String(), "No changes.")
}

func TestRunDelete(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, RunDelete(context.Background(), te.Env, Selector{ID: -1, Name: "eth0"}, false))

	assert.False(t, te.hasIfcfg("eth0"))
	assert.Contains(t, te.out.String(), "Deleted eth0.")

	err := RunDelete(context.Background(), te.Env, Selector{ID: -1, Name: "nope"}, false)
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestRunDelete_DryRun(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, RunDelete(context.Background(), te.Env, Selector{ID: 0}, true))

	assert.True(t, te.hasIfcfg("eth0"))
	assert.Contains(t, te.out.String(), "+++ /dev/null")
	assert.Contains(t, te.out.String(), "-BOOTPROTO='static'")
}

func TestRunRename(t *testing.T) {
	te := newTestEnv(t)
	err := RunRename(context.Background(), te.Env, RenameOptions{Name: "eth0", To: "lan0"})
	require.NoError(t, err)

	assert.False(t, te.hasIfcfg("eth0"))
	assert.Contains(t, te.readIfcfg(t, "lan0"), "IPADDR='192.168.0.10/24'")
	rules := te.read(t, te.Config.Paths.UdevRules)
	assert.Contains(t, rules, `NAME="lan0"`)
	assert.NotContains(t, rules, `NAME="eth0"`)
	assert.Contains(t, te.out.String(), "Renamed eth0 to lan0.")
}

func TestRunRename_ByBusID(t *testing.T) {
	te := newTestEnv(t)
	err := RunRename(context.Background(), te.Env, RenameOptions{Name: "eth1", To: "lan1", By: "busid"})
	require.NoError(t, err)

	rules := te.read(t, te.Config.Paths.UdevRules)
	assert.Contains(t, rules, `KERNELS=="0000:00:04.0"`)
	assert.Contains(t, rules, `NAME="lan1"`)

	err = RunRename(context.Background(), te.Env, RenameOptions{Name: "eth2", To: "lan2", By: "serial"})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
}

func TestRunRename_Bios(t *testing.T) {
	te := newTestEnv(t)
	exec := new(network.MockCommandExecutor)
	exec.On("biosdevname", "-i", "eth1").Return("em2\n", nil)
	te.Net = network.NewServiceWithDeps(nil, nil, exec)

	require.NoError(t, RunRename(context.Background(), te.Env, RenameOptions{Name: "eth1", Bios: true}))
	assert.Contains(t, te.read(t, te.Config.Paths.UdevRules), `NAME="em2"`)
	assert.Contains(t, te.out.String(), "Renamed eth1 to em2.")
	exec.AssertExpectations(t)

	err := RunRename(context.Background(), te.Env, RenameOptions{Name: "eth2", To: "x", Bios: true})
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
}

func TestRunCandidates(t *testing.T) {
	te := newTestEnv(t)
	te.ifcfg(t, "br0", "BRIDGE='yes'\nBRIDGE_PORTS='eth1'\nBOOTPROTO='dhcp'\nSTARTMODE='auto'\n")
	ctx := context.Background()

	require.NoError(t, RunCandidates(ctx, te.Env, "br0"))
	out := te.out.String()
	assert.Contains(t, out, "eth2")
	assert.Contains(t, out, "IP configuration will be removed")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "eth1") {
			assert.Contains(t, line, "yes")
		}
	}

	err := RunCandidates(ctx, te.Env, "eth0")
	assert.ErrorIs(t, err, lcerrors.ErrValidation)
}

func TestDescribeError(t *testing.T) {
	var verrs lcerrors.ValidationErrors
	verrs.Add("eth0.IPADDR", "invalid address %q", "x")
	verrs.Add("eth0.MTU", "must be a number")

	got := DescribeError(verrs.Err())
	assert.Equal(t, "Configuration is not valid:\n  eth0.IPADDR: invalid address \"x\"\n  eth0.MTU: must be a number", got)

	assert.Equal(t, "boom", DescribeError(errors.New("boom")))
}

func TestRunPropose(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, RunPropose(ctx, te.Env, false))
	assert.Contains(t, te.out.String(), "Nothing to propose.")

	require.NoError(t, os.Remove(te.path(filepath.Join(te.Config.Paths.Sysconfig, "ifcfg-eth0"))))
	nics := testNICs()
	nics[0].Link = false
	nics[1].Link = true
	te.Prober = nics

	te.out.Reset()
	require.NoError(t, RunPropose(ctx, te.Env, true))
	assert.Contains(t, te.out.String(), "ifcfg-eth1")
	assert.False(t, te.hasIfcfg("eth1"))

	require.NoError(t, RunPropose(ctx, te.Env, false))
	assert.Contains(t, te.out.String(), "Added eth1.")
	data := te.readIfcfg(t, "eth1")
	assert.Contains(t, data, "BOOTPROTO='dhcp'")
	assert.Contains(t, data, "STARTMODE='auto'")
	assert.False(t, te.hasIfcfg("eth0"))
}
