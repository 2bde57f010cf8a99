package hardware

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

type MockLinkLister struct {
	mock.Mock
}

func (m *MockLinkLister) LinkList() ([]netlink.Link, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Link), args.Error(1)
}

type MockDriverQuerier struct {
	mock.Mock
}

func (m *MockDriverQuerier) DriverInfo(iface string) (*DriverInfo, error) {
	args := m.Called(iface)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DriverInfo), args.Error(1)
}

func (m *MockDriverQuerier) PermAddr(iface string) (string, error) {
	args := m.Called(iface)
	return args.String(0), args.Error(1)
}
