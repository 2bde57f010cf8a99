package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"grimm.is/lancfg/internal/config"
	"grimm.is/lancfg/internal/dhcp"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/network"
	"grimm.is/lancfg/internal/sysconfig"
)

func TestMain(m *testing.M) {
	Printer = message.NewPrinter(language.English)
	os.Exit(m.Run())
}

type fakeDHCP struct {
	offer *dhcp.Offer
	err   error
}

func (f fakeDHCP) Probe(ctx context.Context, iface string) (*dhcp.Offer, error) {
	return f.offer, f.err
}

type testEnv struct {
	*Env
	out  *bytes.Buffer
	exec *network.DryRunExecutor
	sys  *network.DryRunSystemController
}

func testNICs() hardware.StaticProber {
	return hardware.StaticProber{
		{Name: "eth0", MAC: "52:54:00:aa:bb:01", BusID: "0000:00:03.0", Driver: "e1000e", Type: sysconfig.TypeEthernet, Link: true},
		{Name: "eth1", MAC: "52:54:00:aa:bb:02", BusID: "0000:00:04.0", Driver: "e1000e", Type: sysconfig.TypeEthernet},
		{Name: "eth2", MAC: "52:54:00:aa:bb:03", BusID: "0000:00:05.0", Driver: "e1000e", Type: sysconfig.TypeEthernet},
	}
}

const testRules = `SUBSYSTEM=="net", ACTION=="add", DRIVERS=="?*", ATTR{address}=="52:54:00:aa:bb:01", ATTR{type}=="1", NAME="eth0"
`

// newTestEnv returns an environment rooted in a temporary directory with
// eth0 configured statically and eth1, eth2 unconfigured.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.Paths.Root = t.TempDir()

	exec := network.NewDryRunExecutor()
	sys := &network.DryRunSystemController{}
	svc := network.NewServiceWithDeps(&network.DryRunNetlinker{}, sys, exec)
	svc.SetBackend(network.BackendWicked)

	out := &bytes.Buffer{}
	te := &testEnv{
		Env: &Env{
			Config: cfg,
			Out:    out,
			Prober: testNICs(),
			Exec:   exec,
			Net:    svc,
			DHCP:   fakeDHCP{err: errors.New("no offer")},
		},
		out:  out,
		exec: exec,
		sys:  sys,
	}
	te.ifcfg(t, "eth0", "BOOTPROTO='static'\nIPADDR='192.168.0.10/24'\nSTARTMODE='auto'\n")
	te.write(t, cfg.Paths.UdevRules, testRules)
	return te
}

func (te *testEnv) path(rel string) string {
	return te.Config.Paths.In(rel)
}

func (te *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	path := te.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (te *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(te.path(rel))
	require.NoError(t, err)
	return string(data)
}

func (te *testEnv) ifcfg(t *testing.T, name, content string) {
	t.Helper()
	te.write(t, filepath.Join(te.Config.Paths.Sysconfig, "ifcfg-"+name), content)
}

func (te *testEnv) readIfcfg(t *testing.T, name string) string {
	t.Helper()
	return te.read(t, filepath.Join(te.Config.Paths.Sysconfig, "ifcfg-"+name))
}

func (te *testEnv) hasIfcfg(name string) bool {
	_, err := os.Stat(te.path(filepath.Join(te.Config.Paths.Sysconfig, "ifcfg-"+name)))
	return err == nil
}

func ptr[T any](v T) *T {
	return &v
}

func TestNewEnv_OfflineRootRecordsCommands(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "lancfg.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`backend {
  name = "wicked"
}
`), 0644))

	env, err := NewEnv(Globals{ConfigFile: cfgPath, Root: root, LogLevel: "error"})
	require.NoError(t, err)
	defer env.Close()

	require.True(t, env.DryRun())
	require.Equal(t, root, env.Config.Paths.Root)
	require.NoError(t, env.Net.Reload(context.Background(), "eth0"))
	require.Equal(t, []string{"wicked ifreload eth0"}, env.Exec.(*network.DryRunExecutor).Recorded())
}

func TestNewEnv_Errors(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte(`backend {
  name = "systemd-networkd"
}
`), 0644))

	_, err := NewEnv(Globals{ConfigFile: bad, Root: root})
	require.Error(t, err)

	_, err = NewEnv(Globals{ConfigFile: filepath.Join(root, "missing.hcl"), Root: root, LogLevel: "loud"})
	require.Error(t, err)
}
