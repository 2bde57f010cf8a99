package network

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	lcerrors "grimm.is/lancfg/internal/errors"
	"grimm.is/lancfg/internal/hardware"
	"grimm.is/lancfg/internal/sysconfig"
)

var errExit = errors.New("exit status 3")

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", "", false},
		{"auto", "", false},
		{"wicked", BackendWicked, false},
		{"NetworkManager", BackendNetworkManager, false},
		{"nm", BackendNetworkManager, false},
		{"ifup", BackendIfup, false},
		{"none", BackendNone, false},
		{"systemd-networkd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, lcerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBackendDetection(t *testing.T) {
	ctx := context.Background()

	t.Run("wicked", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("systemctl", "is-active", "wicked").Return("active\n", nil).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		assert.Equal(t, BackendWicked, s.Backend(ctx))
		assert.Equal(t, BackendWicked, s.Backend(ctx), "detected once")
		cmd.AssertExpectations(t)
	})

	t.Run("NetworkManager", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("systemctl", "is-active", "wicked").Return("inactive\n", errExit).Once()
		cmd.On("systemctl", "is-active", "NetworkManager").Return("active\n", nil).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		assert.Equal(t, BackendNetworkManager, s.Backend(ctx))
		cmd.AssertExpectations(t)
	})

	t.Run("none", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("systemctl", "is-active", mock.Anything).Return("unknown\n", errExit).Twice()
		s := NewServiceWithDeps(nil, nil, cmd)
		assert.Equal(t, BackendNone, s.Backend(ctx))
		assert.ErrorIs(t, s.Reload(ctx), lcerrors.ErrCommand)
	})
}

func TestReload(t *testing.T) {
	ctx := context.Background()

	t.Run("wicked all", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("wicked", "ifreload", "all").Return("", nil).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		s.SetBackend(BackendWicked)
		assert.NoError(t, s.Reload(ctx))
		cmd.AssertExpectations(t)
	})

	t.Run("wicked devices", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("wicked", "ifreload", "eth0", "br0").Return("", nil).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		s.SetBackend(BackendWicked)
		assert.NoError(t, s.Reload(ctx, "eth0", "br0"))
		cmd.AssertExpectations(t)
	})

	t.Run("ifup ignores ifdown failure", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("ifdown", "eth0").Return("", errExit).Once()
		cmd.On("ifup", "eth0").Return("", nil).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		s.SetBackend(BackendIfup)
		assert.NoError(t, s.Reload(ctx, "eth0"))
		cmd.AssertExpectations(t)
	})

	t.Run("NetworkManager", func(t *testing.T) {
		cmd := new(MockCommandExecutor)
		cmd.On("nmcli", "connection", "reload").Return("", nil).Once()
		cmd.On("nmcli", "device", "reapply", "eth0").Return("", errExit).Once()
		s := NewServiceWithDeps(nil, nil, cmd)
		s.SetBackend(BackendNetworkManager)
		err := s.Reload(ctx, "eth0")
		assert.ErrorIs(t, err, lcerrors.ErrCommand)
		assert.ErrorIs(t, err, errExit)
	})
}

func TestStatus_Wicked(t *testing.T) {
	cmd := new(MockCommandExecutor)
	cmd.On("wicked", "ifstatus", "--brief", "all").Return("lo              up\neth0            setup-in-progress\nbr0             device-not-running\n", nil).Once()
	s := NewServiceWithDeps(nil, nil, cmd)
	s.SetBackend(BackendWicked)

	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DeviceStatus{
		{Name: "lo", State: "up"},
		{Name: "eth0", State: "setup-in-progress"},
		{Name: "br0", State: "device-not-running"},
	}, st)
}

func TestStatus_Netlink(t *testing.T) {
	nl := new(MockNetlinker)
	eth0 := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0", Flags: net.FlagUp, OperState: netlink.OperUp}}
	eth1 := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth1", Flags: net.FlagUp, OperState: netlink.OperDown}}
	nl.On("LinkList").Return([]netlink.Link{eth1, eth0}, nil).Once()
	nl.On("LinkByName", "eth0").Return(eth0, nil)
	nl.On("LinkByName", "eth1").Return(eth1, nil)
	nl.On("AddrList", mock.Anything, unix.AF_UNSPEC).Return([]netlink.Addr{}, nil)

	s := NewServiceWithDeps(nl, nil, nil)
	s.SetBackend(BackendIfup)
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DeviceStatus{{Name: "eth0", State: "up"}, {Name: "eth1", State: "no-carrier"}}, st)

	nl.On("LinkByName", "eth7").Return(nil, errors.New("Link not found"))
	st, err = s.Status(context.Background(), "eth7")
	require.NoError(t, err)
	assert.Equal(t, []DeviceStatus{{Name: "eth7", State: "device-not-present"}}, st)
}

func TestLinkState(t *testing.T) {
	nl := new(MockNetlinker)
	mac, _ := net.ParseMAC("52:54:00:aa:bb:01")
	link := &netlink.Device{LinkAttrs: netlink.LinkAttrs{
		Name: "eth0", Flags: net.FlagUp | net.FlagBroadcast, OperState: netlink.OperUp, MTU: 1500, HardwareAddr: mac,
	}}
	addr, err := netlink.ParseAddr("192.168.0.10/24")
	require.NoError(t, err)
	nl.On("LinkByName", "eth0").Return(link, nil).Once()
	nl.On("AddrList", link, unix.AF_UNSPEC).Return([]netlink.Addr{*addr}, nil).Once()

	s := NewServiceWithDeps(nl, nil, nil)
	st, err := s.LinkState("eth0")
	require.NoError(t, err)
	assert.Equal(t, &LinkState{
		Name:      "eth0",
		Up:        true,
		Carrier:   true,
		OperState: "up",
		MTU:       1500,
		MAC:       "52:54:00:aa:bb:01",
		Addresses: []string{"192.168.0.10/24"},
	}, st)
	nl.AssertExpectations(t)

	nl.On("LinkByName", "eth9").Return(nil, errors.New("Link not found")).Once()
	_, err = s.LinkState("eth9")
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestUpDown(t *testing.T) {
	cmd := new(MockCommandExecutor)
	cmd.On("ifup", "eth0").Return("", nil).Once()
	cmd.On("ifdown", "eth0").Return("ifdown: eth0 is not active\n", errExit).Once()
	s := NewServiceWithDeps(nil, nil, cmd)
	s.SetBackend(BackendIfup)

	assert.NoError(t, s.Up(context.Background(), "eth0"))
	assert.ErrorIs(t, s.Down(context.Background(), "eth0"), lcerrors.ErrCommand)
	cmd.AssertExpectations(t)
}

func TestUpDown_NoBackend(t *testing.T) {
	eth0 := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0"}}
	nl := new(MockNetlinker)
	nl.On("LinkByName", "eth0").Return(eth0, nil)
	nl.On("LinkByName", "eth9").Return(nil, errors.New("Link not found"))
	nl.On("LinkSetUp", eth0).Return(nil).Once()
	nl.On("LinkSetDown", eth0).Return(errors.New("operation not permitted")).Once()
	s := NewServiceWithDeps(nl, nil, nil)
	s.SetBackend(BackendNone)

	ctx := context.Background()
	assert.NoError(t, s.Up(ctx, "eth0"))
	assert.ErrorIs(t, s.Down(ctx, "eth0"), lcerrors.ErrCommand)
	assert.ErrorIs(t, s.Up(ctx, "eth9"), lcerrors.ErrNotFound)
	nl.AssertExpectations(t)
}

func TestBiosName(t *testing.T) {
	cmd := new(MockCommandExecutor)
	cmd.On("biosdevname", "-i", "eth0").Return("em1\n", nil).Once()
	cmd.On("biosdevname", "-i", "eth1").Return("", nil).Once()
	s := NewServiceWithDeps(nil, nil, cmd)

	name, err := s.BiosName(context.Background(), "eth0")
	require.NoError(t, err)
	assert.Equal(t, "em1", name)

	_, err = s.BiosName(context.Background(), "eth1")
	assert.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestActivateS390(t *testing.T) {
	ch := hardware.S390Channel{Read: "0.0.0700", Write: "0.0.0701", Data: "0.0.0702"}

	cmd := new(MockCommandExecutor)
	cmd.On("chzdev", "qeth", "0.0.0700:0.0.0701:0.0.0702", "-e", "layer2=1", "portname=OSAPORT").Return("", nil).Once()
	cmd.On("chzdev", "lcs", "0.0.0600:0.0.0601", "-e").Return("", nil).Once()
	s := NewServiceWithDeps(nil, nil, cmd)

	ctx := context.Background()
	require.NoError(t, s.ActivateS390(ctx, sysconfig.TypeQETH, ch, S390Options{Layer2: true, PortName: "OSAPORT"}))
	require.NoError(t, s.ActivateS390(ctx, sysconfig.TypeLCS, hardware.S390Channel{Read: "0.0.0600", Write: "0.0.0601"}, S390Options{}))
	cmd.AssertExpectations(t)

	assert.ErrorIs(t, s.ActivateS390(ctx, sysconfig.TypeEthernet, ch, S390Options{}), lcerrors.ErrValidation)
	assert.ErrorIs(t, s.ActivateS390(ctx, sysconfig.TypeQETH, hardware.S390Channel{}, S390Options{}), lcerrors.ErrValidation)
}

func TestDryRun(t *testing.T) {
	exec := NewDryRunExecutor()
	sys := &DryRunSystemController{}
	s := NewServiceWithDeps(&DryRunNetlinker{}, sys, exec)
	s.SetBackend(BackendWicked)

	ctx := context.Background()
	require.NoError(t, s.Reload(ctx, "eth0"))
	require.NoError(t, s.SetForwarding(true, false))

	assert.Equal(t, []string{"wicked ifreload eth0"}, exec.Recorded())
	assert.Equal(t, []string{
		"sysctl -w net.ipv4.ip_forward=1",
		"sysctl -w net.ipv6.conf.all.forwarding=0",
		"sysctl -w net.ipv6.conf.default.forwarding=0",
	}, sys.Writes)
}

func TestDryRun_NoBackendSetsLinks(t *testing.T) {
	exec := NewDryRunExecutor()
	nl := &DryRunNetlinker{}
	s := NewServiceWithDeps(nl, &DryRunSystemController{}, exec)
	s.SetBackend(BackendNone)

	ctx := context.Background()
	require.NoError(t, s.Reload(ctx, "eth0", "br0"))
	require.NoError(t, s.Down(ctx, "eth0"))
	assert.ErrorIs(t, s.Reload(ctx), lcerrors.ErrCommand)

	assert.Equal(t, []string{"ip link set eth0 up", "ip link set br0 up", "ip link set eth0 down"}, nl.Recorded())
	assert.Same(t, nl, s.Netlinker())
	assert.Empty(t, exec.Recorded())
}
