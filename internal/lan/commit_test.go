package lan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/sysconfig"
	"grimm.is/lancfg/internal/udev"
)

func planPaths(t *testing.T, items *Items) map[string]FileChange {
	t.Helper()
	changes, err := items.Plan()
	require.NoError(t, err)
	out := make(map[string]FileChange, len(changes))
	for _, c := range changes {
		out[filepath.Base(c.Path)] = c
	}
	return out
}

func TestPlan_Unchanged(t *testing.T) {
	items := newFixture(t).read(t)
	changes, err := items.Plan()
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestPlan_Rename(t *testing.T) {
	items := newFixture(t).read(t)
	require.NoError(t, items.Rename("eth0", "lan0", udev.MechanismMAC))

	plan := planPaths(t, items)
	assert.Contains(t, plan, "ifcfg-lan0")
	assert.Contains(t, plan, "ifroute-lan0")
	assert.Contains(t, plan, "ifcfg-eth0.10")
	assert.Contains(t, plan, "routes")
	assert.Contains(t, plan, "70-persistent-net.rules")

	assert.True(t, plan["ifcfg-eth0"].Removes())
	assert.True(t, plan["ifroute-eth0"].Removes())
	assert.Nil(t, plan["ifcfg-lan0"].Old)
	assert.Equal(t, "lan0", plan["ifcfg-lan0"].Device)
	assert.Equal(t, "172.16.0.0/12 192.168.0.254 - eth0\n", string(plan["ifroute-eth0"].Old))
	assert.Equal(t, "172.16.0.0/12 192.168.0.254 - lan0\n", string(plan["ifroute-lan0"].New))
	assert.Contains(t, string(plan["routes"].New), "default 192.168.0.1 - lan0")
	assert.Contains(t, string(plan["70-persistent-net.rules"].New), `NAME="lan0"`)
}

func TestPlan_RenameKeepsUnboundRoutes(t *testing.T) {
	f := newFixture(t)
	f.write(t, filepath.Join(f.dir, "ifroute-eth0"), "# static\n172.16.0.0/12 192.168.0.254\n10.1.0.0/16 192.168.0.253 - eth1\n")
	items := f.read(t)
	require.NoError(t, items.Rename("eth0", "lan0", ""))

	plan := planPaths(t, items)
	assert.Equal(t, "# static\n172.16.0.0/12 192.168.0.254\n10.1.0.0/16 192.168.0.253 - eth1\n", string(plan["ifroute-lan0"].New),
		"nothing names eth0, the file moves verbatim")
}

func TestPlan_KeepsDiskLineEndings(t *testing.T) {
	f := newFixture(t)
	f.ifcfg(t, "eth2", "BOOTPROTO='none'\r\nSTARTMODE='auto'")
	f.ifcfg(t, "tap0", "TUNNEL='tap'\nBOOTPROTO='static'\nSTARTMODE='auto'")
	f.write(t, f.routesPath, "default   192.168.0.1 - eth0\n\n10.20.0.0/16 10.0.0.254 - bond0\n")
	items := f.read(t)

	changes, err := items.Plan()
	require.NoError(t, err)
	assert.Empty(t, changes)

	require.NoError(t, items.Edit("eth2", func(c *sysconfig.Ifcfg) error {
		c.Set(sysconfig.KeyMTU, "9000")
		return nil
	}))
	require.NoError(t, items.routes.SetDefaultGateway("192.168.0.2", "eth0"))

	plan := planPaths(t, items)
	require.Len(t, plan, 2)
	assert.Equal(t, "BOOTPROTO='none'\r\nSTARTMODE='auto'", string(plan["ifcfg-eth2"].Old))
	assert.Equal(t, "BOOTPROTO='none'\r\nSTARTMODE='auto'\r\nMTU='9000'\r\n", string(plan["ifcfg-eth2"].New))
	assert.Equal(t, "default   192.168.0.1 - eth0\n\n10.20.0.0/16 10.0.0.254 - bond0\n", string(plan["routes"].Old))
	assert.Equal(t, "default 192.168.0.2 - eth0\n10.20.0.0/16 10.0.0.254 - bond0\n", string(plan["routes"].New))
}

func TestCommit_RoundTrip(t *testing.T) {
	f := newFixture(t)
	items := f.read(t)

	require.NoError(t, items.Rename("eth0", "lan0", udev.MechanismMAC))
	require.NoError(t, items.Delete("tap0"))
	_, err := items.Add("br1", sysconfig.TypeBridge)
	require.NoError(t, err)
	require.NoError(t, items.Enslave("br1", []string{"eth3"}))

	touched, err := items.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"br1", "eth0", "eth0.10", "eth3", "lan0", "tap0"}, touched)

	assert.NoFileExists(t, filepath.Join(f.dir, "ifcfg-eth0"))
	assert.NoFileExists(t, filepath.Join(f.dir, "ifcfg-tap0"))
	ifroute, err := os.ReadFile(filepath.Join(f.dir, "ifroute-lan0"))
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.0/12 192.168.0.254 - lan0\n", string(ifroute))

	info, err := os.Stat(filepath.Join(f.dir, "ifcfg-br1"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// nothing left to do
	changes, err := items.Plan()
	require.NoError(t, err)
	assert.Empty(t, changes)

	reread := f.read(t)
	lan0 := mustFind(t, reread, "lan0")
	require.NotNil(t, lan0.Hardware)
	assert.Equal(t, "eth0", lan0.Hardware.Name)
	assert.Equal(t, "192.168.0.10/24", lan0.Config.Get(sysconfig.KeyIPAddr))
	assert.Equal(t, []string{"eth3"}, mustFind(t, reread, "br1").Config.BridgePorts())
	_, err = reread.Find("tap0")
	assert.Error(t, err)

	rules, err := os.ReadFile(f.rulesPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(rules), "# Persistent network device names"))
}

func TestCommit_PreservesUntouchedLines(t *testing.T) {
	f := newFixture(t)
	f.ifcfg(t, "eth2", "# managed by hand\nBOOTPROTO=\"none\"   # keep\nSTARTMODE=auto\nUNKNOWN_KEY=x\n")
	items := f.read(t)

	require.NoError(t, items.Edit("eth2", func(c *sysconfig.Ifcfg) error {
		c.Set(sysconfig.KeyMTU, "9000")
		return nil
	}))
	_, err := items.Commit(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "ifcfg-eth2"))
	require.NoError(t, err)
	assert.Equal(t, "# managed by hand\nBOOTPROTO=\"none\"   # keep\nSTARTMODE=auto\nUNKNOWN_KEY=x\nMTU='9000'\n", string(data))
}

func TestCommit_ValidationBlocks(t *testing.T) {
	f := newFixture(t)
	items := f.read(t)

	require.NoError(t, items.Edit("eth0", func(c *sysconfig.Ifcfg) error {
		c.Set(sysconfig.KeyMTU, "12")
		return nil
	}))
	_, err := items.Commit(context.Background())
	assert.ErrorIs(t, err, lcerrors.ErrValidation)

	data, err := os.ReadFile(filepath.Join(f.dir, "ifcfg-eth0"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "MTU")
}

func TestCommit_Cancelled(t *testing.T) {
	items := newFixture(t).read(t)
	require.NoError(t, items.Delete("tap0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := items.Commit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
