package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lancfg/internal/sysconfig"
)

func TestEthtoolArgs(t *testing.T) {
	tests := []struct {
		opts    string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{"autoneg off speed 100 duplex full", []string{"-s", "eth0", "autoneg", "off", "speed", "100", "duplex", "full"}, false},
		{"-K iface tso off gso off", []string{"-K", "eth0", "tso", "off", "gso", "off"}, false},
		{"-G eth7 rx 4096", []string{"-G", "eth0", "rx", "4096"}, false},
		{"-K", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.opts, func(t *testing.T) {
			got, err := EthtoolArgs("eth0", tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyEthtool(t *testing.T) {
	c := sysconfig.NewIfcfg("eth0")
	c.Set(sysconfig.KeyEthtool, "speed 1000")
	c.Set(sysconfig.KeyEthtool+"_1", "-K iface rx off")
	c.Set(sysconfig.KeyBootProto, sysconfig.BootDHCP)

	cmd := new(MockCommandExecutor)
	cmd.On("ethtool", "-s", "eth0", "speed", "1000").Return("", nil).Once()
	cmd.On("ethtool", "-K", "eth0", "rx", "off").Return("", nil).Once()
	s := NewServiceWithDeps(nil, nil, cmd)

	require.NoError(t, s.ApplyEthtool(context.Background(), c))
	cmd.AssertExpectations(t)
}
