package lan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(r *Report) []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Field
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	items := newFixture(t).read(t)
	r := items.Validate()
	assert.NoError(t, r.Err())
}

func TestValidate_Problems(t *testing.T) {
	f := newFixture(t)
	f.ifcfg(t, "vlan5", "ETHERDEVICE='eth7'\nVLAN_ID='5'\n")
	f.ifcfg(t, "guest", "ETHERDEVICE='eth0'\nVLAN_ID='10'\n")
	f.ifcfg(t, "eth9", "BOOTPROTO='static'\nIPADDR='192.168.0.10/24'\n")
	f.ifcfg(t, "br1", "BRIDGE='yes'\nBRIDGE_PORTS='eth1 eth8'\n")
	f.ifcfg(t, "tap0", "TUNNEL='tap'\nMTU='99999'\n")
	items := f.read(t)

	r := items.Validate()
	require.Error(t, r.Err())

	got := fields(r)
	assert.Contains(t, got, "vlan5", "missing parent")
	assert.Contains(t, got, "guest", "VLAN id 10 on eth0 twice")
	assert.Contains(t, got, "eth9", "duplicate address")
	assert.Contains(t, got, "eth1", "slave of bond0 and port of br1")
	assert.Contains(t, got, "tap0.MTU")

	assert.Contains(t, r.Warnings, "br1: member eth8 does not exist")
}

func TestValidate_FirmwareWarning(t *testing.T) {
	f := newFixture(t)
	f.nics[0].Driver = "bnx2"
	items := f.read(t)

	r := items.Validate()
	assert.NoError(t, r.Err())
	assert.Contains(t, r.Warnings, "eth0: driver bnx2 needs firmware from package kernel-firmware-bnx2")

	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "lib", "firmware", "bnx2"), 0755))
	r = items.Validate()
	assert.NotContains(t, r.Warnings, "eth0: driver bnx2 needs firmware from package kernel-firmware-bnx2")
}
